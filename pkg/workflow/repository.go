package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

var ErrPersistenceNotInitialized = errors.New("persistence layer not initialized")

// Repository is the orchestrator's view of the persistence layer.
type Repository struct {
	persistence persistence.Persistence
	now         func() time.Time
}

func NewRepository(persistence persistence.Persistence) *Repository {
	return &Repository{
		persistence: persistence,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) HealthCheck(ctx context.Context) (string, bool) {
	if r.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := r.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func (r *Repository) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	if r.persistence == nil {
		return nil, ErrPersistenceNotInitialized
	}

	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// OwnerOf returns the id of the user the workflow belongs to.
func (r *Repository) OwnerOf(ctx context.Context, workflowID string) (string, error) {
	workflow, err := r.FetchByID(ctx, workflowID)
	if err != nil {
		return "", err
	}

	return workflow.UserID, nil
}

// StartExecution creates the RUNNING record for (workflowID, eventID), or
// returns the one a previous delivery of the same event created.
func (r *Repository) StartExecution(ctx context.Context, workflowID, eventID string) (*models.Execution, bool, error) {
	if r.persistence == nil {
		return nil, false, ErrPersistenceNotInitialized
	}

	return r.persistence.ExecutionRepository().Create(ctx, &models.Execution{
		WorkflowID: workflowID,
		EventID:    eventID,
		Status:     models.ExecutionStatusRunning,
		StartedAt:  r.now(),
	})
}

func (r *Repository) CompleteExecution(ctx context.Context, workflowID, eventID string, output map[string]any) error {
	if r.persistence == nil {
		return ErrPersistenceNotInitialized
	}

	return r.persistence.ExecutionRepository().Complete(ctx, workflowID, eventID, output, r.now())
}

func (r *Repository) FailExecution(ctx context.Context, eventID, message, stack string) error {
	if r.persistence == nil {
		return ErrPersistenceNotInitialized
	}

	return r.persistence.ExecutionRepository().Fail(ctx, eventID, message, stack, r.now())
}

// Steps returns the store durable step results are recorded in.
func (r *Repository) Steps() persistence.StepRepository {
	if r.persistence == nil {
		return nil
	}

	return r.persistence.StepRepository()
}
