package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

type StepRepository struct {
	db *sql.DB
}

func NewStepRepository(db *sql.DB) *StepRepository {
	return &StepRepository{db: db}
}

func (r *StepRepository) Load(ctx context.Context, runID, name string) (json.RawMessage, bool, error) {
	var result []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT result FROM execution_steps WHERE run_id = $1 AND name = $2", runID, name).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return result, true, nil
}

// Save keeps the first result recorded for a step.
func (r *StepRepository) Save(ctx context.Context, runID, name string, result json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO execution_steps (run_id, name, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id, name) DO NOTHING
	`, runID, name, []byte(result))

	return err
}
