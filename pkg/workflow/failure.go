package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// FailureHandler records a run's terminal failure on its execution record.
type FailureHandler struct {
	repository *Repository
	logger     *slog.Logger
}

func NewFailureHandler(repository *Repository, logger *slog.Logger) *FailureHandler {
	return &FailureHandler{
		repository: repository,
		logger:     logger.With("module", "failure_handler"),
	}
}

// Handle marks the execution started by eventID as FAILED with the message
// and stack of cause. A run that failed before its record existed leaves
// nothing to update and is only logged.
func (h *FailureHandler) Handle(ctx context.Context, eventID string, cause error) error {
	logger := h.logger.With("event_id", eventID)

	if eventID == "" {
		logger.WarnContext(ctx, "Cannot record failure without an event id", "error", cause)

		return nil
	}

	err := h.repository.FailExecution(ctx, eventID, cause.Error(), protocol.ErrorStack(cause))
	if persistence.IsExecutionNotFound(err) {
		logger.WarnContext(ctx, "No open execution to mark as failed", "error", cause)

		return nil
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to record execution failure", "error", err, "cause", cause)

		return fmt.Errorf("failed to record failure of event %s: %w", eventID, err)
	}

	logger.InfoContext(ctx, "Execution marked as failed", "error", cause)

	return nil
}
