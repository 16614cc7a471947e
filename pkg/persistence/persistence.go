// Package persistence provides the storage abstraction for workflows, executions,
// credentials and recorded step results.
package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	CredentialRepository() CredentialRepository
	StepRepository() StepRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

type WorkflowRepository interface {
	// ListByOwner returns the user's workflows, most recently updated first.
	ListByOwner(ctx context.Context, userID string) ([]*models.Workflow, error)
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// Save creates or replaces a workflow together with its nodes and connections.
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

type ExecutionRepository interface {
	// Create inserts execution unless a record for the same workflow and event
	// already exists. It returns the stored record and whether it was created.
	Create(ctx context.Context, execution *models.Execution) (*models.Execution, bool, error)
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
	// Complete marks the run for (workflowID, eventID) as SUCCESS.
	Complete(ctx context.Context, workflowID, eventID string, output map[string]any, completedAt time.Time) error
	// Fail marks every non-terminal record started by eventID as FAILED.
	// It returns ErrExecutionNotFound when there is none.
	Fail(ctx context.Context, eventID, message, stack string, completedAt time.Time) error
}

type CredentialRepository interface {
	// ListByOwner returns the user's credentials, optionally filtered by type.
	ListByOwner(ctx context.Context, userID string, credentialType models.CredentialType) ([]*models.Credential, error)
	GetByIDAndOwner(ctx context.Context, id, userID string) (*models.Credential, error)
	Save(ctx context.Context, credential *models.Credential) error
	Delete(ctx context.Context, id, userID string) error
}

// StepRepository records durable step results; see package step.
type StepRepository interface {
	Load(ctx context.Context, runID, name string) (json.RawMessage, bool, error)
	Save(ctx context.Context, runID, name string, result json.RawMessage) error
}
