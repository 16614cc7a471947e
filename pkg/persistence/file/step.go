package file

import (
	"context"
	"encoding/json"
)

// StepRepository keeps one document per run mapping step names to results.
type StepRepository struct {
	runs *collection
}

func NewStepRepository(root string) *StepRepository {
	return &StepRepository{runs: newCollection(root, "steps")}
}

func (sr *StepRepository) load(runID string) (map[string]json.RawMessage, error) {
	steps := make(map[string]json.RawMessage)

	err := sr.runs.read(runID, &steps)
	if isNotExist(err) {
		return steps, nil
	}

	return steps, err
}

func (sr *StepRepository) Load(_ context.Context, runID, name string) (json.RawMessage, bool, error) {
	sr.runs.mu.RLock()
	defer sr.runs.mu.RUnlock()

	steps, err := sr.load(runID)
	if err != nil {
		return nil, false, err
	}

	result, ok := steps[name]

	return result, ok, nil
}

func (sr *StepRepository) Save(_ context.Context, runID, name string, result json.RawMessage) error {
	sr.runs.mu.Lock()
	defer sr.runs.mu.Unlock()

	steps, err := sr.load(runID)
	if err != nil {
		return err
	}

	if _, exists := steps[name]; exists {
		return nil
	}

	steps[name] = result

	return sr.runs.write(runID, steps)
}
