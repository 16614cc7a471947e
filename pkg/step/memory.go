package step

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
)

// MemoryStore keeps step results in process memory. Results are lost on
// restart, so it only suits tests and single-process development.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Load(_ context.Context, runID, name string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.runs[runID][name]

	return slices.Clone(result), ok, nil
}

func (s *MemoryStore) Save(_ context.Context, runID, name string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	steps, ok := s.runs[runID]
	if !ok {
		steps = make(map[string]json.RawMessage)
		s.runs[runID] = steps
	}

	if _, exists := steps[name]; !exists {
		steps[name] = slices.Clone(result)
	}

	return nil
}

// Steps returns the names recorded for runID in sorted order.
func (s *MemoryStore) Steps(runID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.runs[runID]))
	for name := range s.runs[runID] {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
