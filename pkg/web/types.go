// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/realtime"
)

// RenameWorkflowRequest is the body of PATCH /workflows/:id.
type RenameWorkflowRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// SaveGraphRequest replaces the editor graph of a workflow.
type SaveGraphRequest struct {
	Nodes       []*models.Node       `json:"nodes"       validate:"dive"`
	Connections []*models.Connection `json:"connections" validate:"dive"`
}

// ExecuteWorkflowRequest optionally seeds the run context.
type ExecuteWorkflowRequest struct {
	InitialData map[string]any `json:"initialData,omitempty"`
}

// ExecuteWorkflowResponse acknowledges a queued run. The event id is also the
// execution's event id once the worker picks it up.
type ExecuteWorkflowResponse struct {
	EventID    string    `json:"eventId"`
	WorkflowID string    `json:"workflowId"`
	QueuedAt   time.Time `json:"queuedAt"`
}

// CreateTokenRequest asks for a subscription token on one status channel.
type CreateTokenRequest struct {
	Channel realtime.Channel `json:"channel" validate:"required"`
}
