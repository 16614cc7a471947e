package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

type ExecutionRepository struct {
	executions *collection
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{executions: newCollection(root, "executions")}
}

// all loads every execution matching keep. Callers must hold the lock.
func (er *ExecutionRepository) all(keep func(*models.Execution) bool) ([]*models.Execution, error) {
	ids, err := er.executions.ids()
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0)

	for _, id := range ids {
		var execution models.Execution
		if err := er.executions.read(id, &execution); err != nil {
			return nil, persistence.NewExecutionError("read", id, err)
		}

		if keep(&execution) {
			executions = append(executions, &execution)
		}
	}

	return executions, nil
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) (*models.Execution, bool, error) {
	er.executions.mu.Lock()
	defer er.executions.mu.Unlock()

	existing, err := er.all(func(e *models.Execution) bool {
		return e.WorkflowID == execution.WorkflowID && e.EventID == execution.EventID
	})
	if err != nil {
		return nil, false, err
	}

	if len(existing) > 0 {
		return existing[0], false, nil
	}

	stored := *execution

	if stored.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, false, err
		}

		stored.ID = id.String()
	}

	if stored.Status == "" {
		stored.Status = models.ExecutionStatusRunning
	}

	if stored.StartedAt.IsZero() {
		stored.StartedAt = time.Now().UTC()
	}

	if err := er.executions.write(stored.ID, &stored); err != nil {
		return nil, false, persistence.NewExecutionError("Create", stored.ID, err)
	}

	return &stored, true, nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	er.executions.mu.RLock()
	defer er.executions.mu.RUnlock()

	var execution models.Execution

	err := er.executions.read(id, &execution)
	if isNotExist(err) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.Execution, error) {
	er.executions.mu.RLock()
	defer er.executions.mu.RUnlock()

	executions, err := er.all(func(e *models.Execution) bool {
		return e.WorkflowID == workflowID
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (er *ExecutionRepository) Complete(_ context.Context, workflowID, eventID string, output map[string]any, completedAt time.Time) error {
	er.executions.mu.Lock()
	defer er.executions.mu.Unlock()

	executions, err := er.all(func(e *models.Execution) bool {
		return e.WorkflowID == workflowID && e.EventID == eventID
	})
	if err != nil {
		return err
	}

	if len(executions) == 0 {
		return persistence.NewExecutionError("Complete", eventID, persistence.ErrExecutionNotFound)
	}

	for _, execution := range executions {
		execution.Status = models.ExecutionStatusSuccess
		execution.Output = output
		execution.CompletedAt = &completedAt

		if err := er.executions.write(execution.ID, execution); err != nil {
			return persistence.NewExecutionError("Complete", execution.ID, err)
		}
	}

	return nil
}

func (er *ExecutionRepository) Fail(_ context.Context, eventID, message, stack string, completedAt time.Time) error {
	er.executions.mu.Lock()
	defer er.executions.mu.Unlock()

	executions, err := er.all(func(e *models.Execution) bool {
		return e.EventID == eventID && !e.Status.IsTerminal()
	})
	if err != nil {
		return err
	}

	if len(executions) == 0 {
		return persistence.NewExecutionError("Fail", eventID, persistence.ErrExecutionNotFound)
	}

	for _, execution := range executions {
		execution.Status = models.ExecutionStatusFailed
		execution.Error = message
		execution.ErrorStack = stack
		execution.CompletedAt = &completedAt

		if err := er.executions.write(execution.ID, execution); err != nil {
			return persistence.NewExecutionError("Fail", execution.ID, err)
		}
	}

	return nil
}
