// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/services"
)

// UserIDHeader identifies the caller. Authentication happens upstream; the API
// only scopes data to the given user.
const UserIDHeader = "X-User-ID"

const userIDLocal = "userID"

// DefaultHeartbeat is how often an idle status stream sends a comment line.
const DefaultHeartbeat = 15 * time.Second

// Services groups the service layer the handlers delegate to.
type Services struct {
	Workflow   *services.Workflow
	Credential *services.Credential
	Execution  *services.Execution
	Trigger    *services.Trigger
}

// Realtime groups what the status stream endpoints need.
type Realtime struct {
	Tokens    *realtime.TokenIssuer
	Hub       *realtime.Hub
	Heartbeat time.Duration
}

type APIHandlers struct {
	workflowService   *services.Workflow
	credentialService *services.Credential
	executionService  *services.Execution
	triggerService    *services.Trigger
	registry          *registry.Registry
	tokens            *realtime.TokenIssuer
	hub               *realtime.Hub
	heartbeat         time.Duration
	validator         *validator.Validate
	logger            *slog.Logger
}

func NewAPIHandlers(
	svc Services,
	rt Realtime,
	validator *validator.Validate,
	registry *registry.Registry,
	logger *slog.Logger,
) *APIHandlers {
	heartbeat := rt.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	return &APIHandlers{
		workflowService:   svc.Workflow,
		credentialService: svc.Credential,
		executionService:  svc.Execution,
		triggerService:    svc.Trigger,
		registry:          registry,
		tokens:            rt.Tokens,
		hub:               rt.Hub,
		heartbeat:         heartbeat,
		validator:         validator,
		logger:            logger.With("module", "api"),
	}
}

// RequireUser rejects requests without a user header and stores the user id
// for the handlers.
func (h *APIHandlers) RequireUser(c fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(UserIDHeader))
	if userID == "" {
		return unauthorized(c, "missing "+UserIDHeader+" header")
	}

	c.Locals(userIDLocal, userID)

	return c.Next()
}

func currentUser(c fiber.Ctx) string {
	userID, _ := c.Locals(userIDLocal).(string)

	return userID
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := "Registry is healthy", true
	if err := h.registry.HealthCheck(); err != nil {
		registryCheck, regOk = err.Error(), false
	}

	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Nodeflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "Nodeflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":   registryCheck,
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetNodeTypes lists the node types the editor can place.
func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"items": h.registry.Descriptors()})
}

// parsePageRequest reads page, pageSize and search from the query string.
func parsePageRequest(c fiber.Ctx) (services.PageRequest, error) {
	req := services.PageRequest{Search: c.Query("search")}

	if pageStr := c.Query("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil {
			return req, err
		}

		req.Page = page
	}

	if sizeStr := c.Query("pageSize"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return req, err
		}

		req.PageSize = size
	}

	return req, nil
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parsePageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	page, err := h.workflowService.List(c.Context(), currentUser(c), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(page)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	created, err := h.workflowService.Create(c.Context(), currentUser(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) RenameWorkflow(c fiber.Ctx) error {
	var req RenameWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Rename(c.Context(), currentUser(c), c.Params("id"), req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) SaveWorkflowGraph(c fiber.Ctx) error {
	var req SaveGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.SaveGraph(c.Context(), currentUser(c), c.Params("id"), req.Nodes, req.Connections)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteWorkflow queues a manual run. The run itself happens on a worker.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteWorkflowRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	event, err := h.triggerService.Execute(c.Context(), currentUser(c), c.Params("id"), req.InitialData)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(ExecuteWorkflowResponse{
		EventID:    event.ID,
		WorkflowID: event.Data.WorkflowID,
		QueuedAt:   event.Timestamp,
	})
}

// GoogleFormWebhook receives a form submission posted by the Apps Script
// bound to a form. It is not user scoped: the workflow id is the capability.
func (h *APIHandlers) GoogleFormWebhook(c fiber.Ctx) error {
	var payload map[string]any
	if err := c.Bind().JSON(&payload); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	event, err := h.triggerService.GoogleForm(c.Context(), c.Query("workflowId"), payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Google Form submission queued",
		"workflow_id", event.Data.WorkflowID, "event_id", event.ID)

	return c.JSON(fiber.Map{"success": true, "eventId": event.ID})
}

func (h *APIHandlers) GetCredentials(c fiber.Ctx) error {
	req, err := parsePageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	page, err := h.credentialService.List(c.Context(), currentUser(c), models.CredentialType(c.Query("type")), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(page)
}

func (h *APIHandlers) GetCredential(c fiber.Ctx) error {
	credential, err := h.credentialService.Get(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(credential)
}

func (h *APIHandlers) CreateCredential(c fiber.Ctx) error {
	var req services.CredentialInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	created, err := h.credentialService.Create(c.Context(), currentUser(c), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateCredential(c fiber.Ctx) error {
	var req services.CredentialInput
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	updated, err := h.credentialService.Update(c.Context(), currentUser(c), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteCredential(c fiber.Ctx) error {
	if err := h.credentialService.Delete(c.Context(), currentUser(c), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	req, err := parsePageRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	page, err := h.executionService.List(c.Context(), currentUser(c), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(page)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	execution, err := h.executionService.Get(c.Context(), currentUser(c), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}
