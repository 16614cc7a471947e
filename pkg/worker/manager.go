// Package worker consumes workflow execution requests from the event bus and
// runs them.
package worker

import (
	"context"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/workflow"
)

// Runner executes one workflow run.
type Runner interface {
	Run(ctx context.Context, event events.WorkflowExecuteRequested) (*workflow.Result, error)
}

type Manager struct {
	id         string
	logger     *slog.Logger
	runner     Runner
	subscriber eventbus.EventSubscriber
}

func NewManager(id string, runner Runner, subscriber eventbus.EventSubscriber, logger *slog.Logger) *Manager {
	return &Manager{
		id:         id,
		logger:     logger.With("module", "nodeflow-worker", "worker_id", id),
		runner:     runner,
		subscriber: subscriber,
	}
}

// Start subscribes to execution requests and blocks until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting worker manager")

	err := m.subscriber.Handle(events.WorkflowExecuteRequestedEvent, m.handleExecuteRequested)
	if err != nil {
		return err
	}

	err = m.subscriber.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	m.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Shutting down worker...")

	return nil
}

// handleExecuteRequested runs the requested workflow. A failed run has
// already been recorded, so the message is acked; only runs interrupted by
// shutdown are handed back for redelivery, where recorded steps are replayed.
func (m *Manager) handleExecuteRequested(ctx context.Context, event any) error {
	requested, ok := event.(*events.WorkflowExecuteRequested)
	if !ok {
		m.logger.ErrorContext(ctx, "Invalid event type for WorkflowExecuteRequested")

		return nil
	}

	logger := m.logger.With(
		"workflow_id", requested.Data.WorkflowID,
		"event_id", requested.ID,
	)
	logger.InfoContext(ctx, "Processing workflow execute request")

	result, err := m.runner.Run(ctx, *requested)
	if err != nil {
		if ctx.Err() != nil {
			logger.WarnContext(ctx, "Workflow run interrupted", "error", err)

			return err
		}

		logger.ErrorContext(ctx, "Workflow run failed", "error", err)

		return nil
	}

	if result.Replayed {
		logger.InfoContext(ctx, "Workflow run already finished", "execution_id", result.ExecutionID, "status", result.Status)

		return nil
	}

	logger.InfoContext(ctx, "Workflow run completed", "execution_id", result.ExecutionID, "status", result.Status)

	return nil
}
