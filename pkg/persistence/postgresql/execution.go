package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , event_id
  , status
  , output
  , error
  , error_stack
  , started_at
  , completed_at
`

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) (*models.Execution, bool, error) {
	if uuid.Validate(execution.WorkflowID) != nil {
		return nil, false, persistence.NewWorkflowError("Create", execution.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	stored := *execution

	if stored.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate execution ID: %w", err)
		}

		stored.ID = id.String()
	}

	if stored.Status == "" {
		stored.Status = models.ExecutionStatusRunning
	}

	if stored.StartedAt.IsZero() {
		stored.StartedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO executions (id, workflow_id, event_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (workflow_id, event_id) DO NOTHING
	`, stored.ID, stored.WorkflowID, stored.EventID, stored.Status, stored.StartedAt)
	if isForeignKeyViolation(err) {
		return nil, false, persistence.NewWorkflowError("Create", stored.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, false, persistence.NewExecutionError("Create", stored.EventID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, persistence.NewExecutionError("Create", stored.EventID, err)
	}

	if affected == 1 {
		return &stored, true, nil
	}

	existing, err := scanExecution(r.db.QueryRowContext(ctx,
		"SELECT "+executionColumns+" FROM executions WHERE workflow_id = $1 AND event_id = $2",
		stored.WorkflowID, stored.EventID))
	if err != nil {
		return nil, false, persistence.NewExecutionError("Create", stored.EventID, err)
	}

	return existing, false, nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	if uuid.Validate(id) != nil {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	execution, err := scanExecution(r.db.QueryRowContext(ctx,
		"SELECT "+executionColumns+" FROM executions WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	return execution, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	if uuid.Validate(workflowID) != nil {
		return []*models.Execution{}, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+executionColumns+" FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func (r *ExecutionRepository) Complete(ctx context.Context, workflowID, eventID string, output map[string]any, completedAt time.Time) error {
	payload, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal execution output: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $3, output = $4, completed_at = $5
		WHERE workflow_id = $1 AND event_id = $2
	`, workflowID, eventID, models.ExecutionStatusSuccess, payload, completedAt)
	if err != nil {
		return persistence.NewExecutionError("Complete", eventID, err)
	}

	return requireAffected(result, "Complete", eventID)
}

func (r *ExecutionRepository) Fail(ctx context.Context, eventID, message, stack string, completedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2, error = $3, error_stack = $4, completed_at = $5
		WHERE event_id = $1 AND status NOT IN ('SUCCESS', 'FAILED')
	`, eventID, models.ExecutionStatusFailed, message, stack, completedAt)
	if err != nil {
		return persistence.NewExecutionError("Fail", eventID, err)
	}

	return requireAffected(result, "Fail", eventID)
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func requireAffected(result sql.Result, op, eventID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError(op, eventID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError(op, eventID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		output      []byte
		completedAt sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.EventID,
		&execution.Status,
		&output,
		&execution.Error,
		&execution.ErrorStack,
		&execution.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(output) > 0 {
		if err := json.Unmarshal(output, &execution.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution output: %w", err)
		}
	}

	execution.StartedAt = execution.StartedAt.UTC()

	if completedAt.Valid {
		t := completedAt.Time.UTC()
		execution.CompletedAt = &t
	}

	return &execution, nil
}
