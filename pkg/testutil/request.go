package testutil

import (
	"log/slog"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/step"
)

// Harness bundles what an executor test needs: a fresh step store, a runner
// over it and a recording publisher.
type Harness struct {
	Store     *step.MemoryStore
	Runner    *step.Runner
	Publisher *RecordingPublisher
}

func NewHarness(runID string) *Harness {
	store := step.NewMemoryStore()

	return &Harness{
		Store:     store,
		Runner:    step.NewRunner(runID, store, slog.New(slog.DiscardHandler)),
		Publisher: NewRecordingPublisher(),
	}
}

// Request builds an ExecuteRequest for nodeID wired to the harness.
func (h *Harness) Request(nodeID, userID string, data map[string]any, c models.Context) protocol.ExecuteRequest {
	return protocol.ExecuteRequest{
		NodeID:    nodeID,
		Data:      data,
		Context:   c,
		UserID:    userID,
		Steps:     h.Runner,
		Publisher: h.Publisher,
		Logger:    slog.New(slog.DiscardHandler),
	}
}
