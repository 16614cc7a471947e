// Package protocol defines the contracts between the orchestrator and node executors.
package protocol

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/realtime"
)

// ExecuteRequest is everything a node executor receives for one invocation.
type ExecuteRequest struct {
	NodeID string
	// Data is the node's saved configuration.
	Data    map[string]any
	Context models.Context
	// UserID is the owner of the workflow being run.
	UserID    string
	Steps     StepRunner
	Publisher realtime.Publisher
	Logger    *slog.Logger
}

// Executor runs one node kind. It returns the context for the next node and
// must leave the incoming context untouched.
type Executor interface {
	Execute(ctx context.Context, req ExecuteRequest) (models.Context, error)
}

type ExecutorFunc func(ctx context.Context, req ExecuteRequest) (models.Context, error)

func (f ExecutorFunc) Execute(ctx context.Context, req ExecuteRequest) (models.Context, error) {
	return f(ctx, req)
}

// StepFunc is a side effect whose result is recorded the first time it
// completes. The result must be JSON serializable.
type StepFunc func(ctx context.Context) (any, error)

// StepRunner runs named durable steps. A step that already completed in the
// current run returns its recorded result without calling fn again.
type StepRunner interface {
	Run(ctx context.Context, name string, fn StepFunc) (json.RawMessage, error)
	// Generate is Run for model inference calls, traced separately.
	Generate(ctx context.Context, name string, fn StepFunc) (json.RawMessage, error)
}

// CredentialReader looks up a credential owned by userID.
type CredentialReader interface {
	GetByIDAndOwner(ctx context.Context, id, userID string) (*models.Credential, error)
}

// NodeDescriptor describes a node type to API clients. Schema is the JSON
// schema of the node's Data.
type NodeDescriptor struct {
	Type        models.NodeType  `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Channel     realtime.Channel `json:"channel"`
	Schema      map[string]any   `json:"schema"`
}
