package services

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// WorkflowRef names the workflow an execution belongs to.
type WorkflowRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ExecutionView is an execution together with its workflow.
type ExecutionView struct {
	*models.Execution

	Workflow WorkflowRef `json:"workflow"`
}

// Execution reads execution records on behalf of workflow owners.
type Execution struct {
	persistence persistence.Persistence
}

func NewExecution(persistence persistence.Persistence) *Execution {
	return &Execution{persistence: persistence}
}

// List returns one page of the executions of every workflow the user owns,
// most recently started first. Search matches the workflow name.
func (s *Execution) List(ctx context.Context, userID string, req PageRequest) (*Page[ExecutionView], error) {
	userID, err := ownerID(userID)
	if err != nil {
		return nil, err
	}

	workflows, err := s.persistence.WorkflowRepository().ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	req = req.normalize()

	var views []ExecutionView

	for _, workflow := range workflows {
		if !req.matches(workflow.Name) {
			continue
		}

		executions, err := s.persistence.ExecutionRepository().ListByWorkflow(ctx, workflow.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list executions of workflow %s: %w", workflow.ID, err)
		}

		for _, execution := range executions {
			views = append(views, ExecutionView{
				Execution: execution,
				Workflow:  WorkflowRef{ID: workflow.ID, Name: workflow.Name},
			})
		}
	}

	slices.SortStableFunc(views, func(a, b ExecutionView) int {
		return b.StartedAt.Compare(a.StartedAt)
	})

	return paginate(views, req), nil
}

// Get returns an execution of a workflow owned by userID.
func (s *Execution) Get(ctx context.Context, userID, id string) (*ExecutionView, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if persistence.IsWorkflowNotFound(err) || (err == nil && !workflow.OwnedBy(userID)) {
		return nil, persistence.NewExecutionError("Get", id, ErrExecutionNotFound)
	}

	if err != nil {
		return nil, err
	}

	return &ExecutionView{
		Execution: execution,
		Workflow:  WorkflowRef{ID: workflow.ID, Name: workflow.Name},
	}, nil
}
