package web

import "github.com/gofiber/fiber/v3"

// Mount registers every API route on router.
func (h *APIHandlers) Mount(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/node-types", h.GetNodeTypes)

	router.Post("/webhooks/google-form", h.GoogleFormWebhook)
	router.Get("/realtime/subscribe", h.SubscribeRealtime)

	router.Post("/realtime/token", h.RequireUser, h.CreateRealtimeToken)

	w := router.Group("/workflows", h.RequireUser)
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.RenameWorkflow)
	w.Put("/:id/graph", h.SaveWorkflowGraph)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/execute", h.ExecuteWorkflow)

	cr := router.Group("/credentials", h.RequireUser)
	cr.Get("/", h.GetCredentials)
	cr.Post("/", h.CreateCredential)
	cr.Get("/:id", h.GetCredential)
	cr.Put("/:id", h.UpdateCredential)
	cr.Delete("/:id", h.DeleteCredential)

	ex := router.Group("/executions", h.RequireUser)
	ex.Get("/", h.GetExecutions)
	ex.Get("/:id", h.GetExecution)
}
