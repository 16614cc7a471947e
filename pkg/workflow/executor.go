// Package workflow runs persisted workflows node by node.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	pkgerrors "github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/graph"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/step"
)

// Step names recorded for every run.
const (
	StepPrepareWorkflow = "prepare-workflow"
	StepGetUserID       = "get-user-id"
	StepUpdateExecution = "update-execution"
)

// Resolver finds the executor for a node type.
type Resolver interface {
	Resolve(nodeType models.NodeType) (protocol.Executor, error)
}

// Result describes a finished run.
type Result struct {
	ExecutionID string                 `json:"execution_id"`
	EventID     string                 `json:"event_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      models.ExecutionStatus `json:"status"`
	Output      map[string]any         `json:"output,omitempty"`
	// Replayed is set when the event had already been run to completion and
	// nothing was executed again.
	Replayed bool `json:"replayed"`
}

type Executor struct {
	repository  *Repository
	registry    Resolver
	failures    *FailureHandler
	steps       step.Store
	publisher   realtime.Publisher
	logger      *slog.Logger
	tracer      trace.Tracer
	stepOptions []step.Option
}

type Option func(*Executor)

func WithPublisher(publisher realtime.Publisher) Option {
	return func(e *Executor) {
		e.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = tracer
	}
}

// WithStepStore records step results in store instead of the persistence
// layer's step repository.
func WithStepStore(store step.Store) Option {
	return func(e *Executor) {
		e.steps = store
	}
}

// WithStepOptions configures the step runner created for each run.
func WithStepOptions(opts ...step.Option) Option {
	return func(e *Executor) {
		e.stepOptions = append(e.stepOptions, opts...)
	}
}

func NewExecutor(repository *Repository, registry Resolver, logger *slog.Logger, opts ...Option) *Executor {
	executor := &Executor{
		repository: repository,
		registry:   registry,
		failures:   NewFailureHandler(repository, logger),
		publisher:  realtime.Discard,
		logger:     logger.With("module", "workflow_executor"),
		tracer:     otelhelper.NoopTracer(),
	}

	for _, opt := range opts {
		opt(executor)
	}

	if executor.steps == nil {
		executor.steps = repository.Steps()
	}

	executor.stepOptions = append(executor.stepOptions, step.WithTracer(executor.tracer))

	return executor
}

type preparedWorkflow struct {
	Nodes []*models.Node `json:"nodes"`
}

// Run executes the workflow named by event. The event id identifies the run:
// delivering the same event again resumes it from its recorded steps, or
// returns the recorded outcome when it already finished. Any error is recorded
// on the execution before it is returned, unless ctx ended first: an
// interrupted run stays RUNNING so a redelivery resumes it.
func (e *Executor) Run(ctx context.Context, event events.WorkflowExecuteRequested) (*Result, error) {
	logger := e.logger.With("event_id", event.ID, "workflow_id", event.Data.WorkflowID)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.EventIDKey, event.ID),
		attribute.String(otelhelper.WorkflowIDKey, event.Data.WorkflowID),
	)
	defer span.End()

	result, err := e.run(ctx, event, logger)
	if err != nil {
		otelhelper.SetError(span, err)

		if ctx.Err() != nil {
			logger.WarnContext(ctx, "Workflow execution interrupted", "error", err)

			return nil, err
		}

		logger.ErrorContext(ctx, "Workflow execution failed", "error", err)

		if handleErr := e.failures.Handle(ctx, event.ID, err); handleErr != nil {
			return nil, fmt.Errorf("%w (recording the failure also failed: %v)", err, handleErr) //nolint:errorlint
		}

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, result.ExecutionID))

	return result, nil
}

func (e *Executor) run(ctx context.Context, event events.WorkflowExecuteRequested, logger *slog.Logger) (*Result, error) {
	if err := event.Validate(); err != nil {
		return nil, protocol.NonRetriable(fmt.Errorf("invalid execution request: %w", err))
	}

	workflowID := event.Data.WorkflowID

	execution, created, err := e.repository.StartExecution(ctx, workflowID, event.ID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, protocol.NonRetriable(err)
		}

		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	logger = logger.With("execution_id", execution.ID)

	if !created && execution.Status.IsTerminal() {
		logger.InfoContext(ctx, "Execution already finished, skipping", "status", execution.Status)

		return &Result{
			ExecutionID: execution.ID,
			EventID:     event.ID,
			WorkflowID:  workflowID,
			Status:      execution.Status,
			Output:      execution.Output,
			Replayed:    true,
		}, nil
	}

	logger.InfoContext(ctx, "Starting workflow execution", "resumed", !created)

	runner := step.NewRunner(event.ID, e.steps, logger, e.stepOptions...)

	prepared, err := step.Do(ctx, runner, StepPrepareWorkflow, func(ctx context.Context) (preparedWorkflow, error) {
		return e.prepare(ctx, workflowID)
	})
	if err != nil {
		return nil, err
	}

	userID, err := step.Do(ctx, runner, StepGetUserID, func(ctx context.Context) (string, error) {
		userID, err := e.repository.OwnerOf(ctx, workflowID)
		if persistence.IsWorkflowNotFound(err) {
			return "", protocol.NonRetriable(err)
		}

		return userID, err
	})
	if err != nil {
		return nil, err
	}

	current := models.NewContext(event.Data.InitialData)

	for _, node := range prepared.Nodes {
		current, err = e.runNode(ctx, runner, node, userID, current, logger)
		if err != nil {
			return nil, err
		}
	}

	output := current.Map()

	_, err = step.Do(ctx, runner, StepUpdateExecution, func(ctx context.Context) (bool, error) {
		if err := e.repository.CompleteExecution(ctx, workflowID, event.ID, output); err != nil {
			return false, err
		}

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Workflow execution completed", "nodes", len(prepared.Nodes))

	return &Result{
		ExecutionID: execution.ID,
		EventID:     event.ID,
		WorkflowID:  workflowID,
		Status:      models.ExecutionStatusSuccess,
		Output:      output,
	}, nil
}

func (e *Executor) prepare(ctx context.Context, workflowID string) (preparedWorkflow, error) {
	workflow, err := e.repository.FetchByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return preparedWorkflow{}, protocol.NonRetriable(err)
		}

		return preparedWorkflow{}, err
	}

	sorted, err := graph.Sort(workflow.Nodes, workflow.Connections)
	if err != nil {
		return preparedWorkflow{}, protocol.NonRetriable(fmt.Errorf("workflow %s cannot be ordered: %w", workflowID, err))
	}

	return preparedWorkflow{Nodes: sorted}, nil
}

func (e *Executor) runNode(
	ctx context.Context,
	runner *step.Runner,
	node *models.Node,
	userID string,
	current models.Context,
	logger *slog.Logger,
) (models.Context, error) {
	logger = logger.With("node_id", node.ID, "node_type", node.Type)

	executor, err := e.registry.Resolve(node.Type)
	if err != nil {
		return current, pkgerrors.WithStack(err)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "node "+string(node.Type),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, string(node.Type)),
	)
	defer span.End()

	logger.DebugContext(ctx, "Executing node")

	next, err := executor.Execute(ctx, protocol.ExecuteRequest{
		NodeID:    node.ID,
		Data:      node.Data,
		Context:   current,
		UserID:    userID,
		Steps:     runner,
		Publisher: e.publisher,
		Logger:    logger,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return current, err
	}

	return next, nil
}
