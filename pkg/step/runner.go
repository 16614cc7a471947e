// Package step runs named, memoized side effects so a workflow run can be
// resumed after a crash without repeating work that already completed.
package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var ErrEmptyStepName = errors.New("step name must not be empty")

// Store records step results per run. Save must keep the first result written
// for a (runID, name) pair.
type Store interface {
	Load(ctx context.Context, runID, name string) (json.RawMessage, bool, error)
	Save(ctx context.Context, runID, name string, result json.RawMessage) error
}

const (
	kindStep = "step"
	kindAI   = "ai"
)

// Runner implements protocol.StepRunner for a single run.
type Runner struct {
	runID       string
	store       Store
	logger      *slog.Logger
	tracer      trace.Tracer
	maxAttempts uint
	newBackOff  func() backoff.BackOff
}

type Option func(*Runner)

// WithMaxAttempts sets how many times a failing step is tried before its
// error is returned. Non-retriable errors are never retried.
func WithMaxAttempts(attempts uint) Option {
	return func(r *Runner) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithBackOff replaces the exponential back-off used between attempts.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(r *Runner) {
		r.newBackOff = newBackOff
	}
}

func NewRunner(runID string, store Store, logger *slog.Logger, opts ...Option) *Runner {
	runner := &Runner{
		runID:       runID,
		store:       store,
		logger:      logger.With("run_id", runID),
		tracer:      otelhelper.NoopTracer(),
		maxAttempts: 1,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second

			return b
		},
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

func (r *Runner) RunID() string {
	return r.runID
}

func (r *Runner) Run(ctx context.Context, name string, fn protocol.StepFunc) (json.RawMessage, error) {
	return r.run(ctx, kindStep, name, fn)
}

func (r *Runner) Generate(ctx context.Context, name string, fn protocol.StepFunc) (json.RawMessage, error) {
	return r.run(ctx, kindAI, name, fn)
}

func (r *Runner) run(ctx context.Context, kind, name string, fn protocol.StepFunc) (json.RawMessage, error) {
	if name == "" {
		return nil, protocol.NonRetriable(ErrEmptyStepName)
	}

	logger := r.logger.With("step", name, "kind", kind)

	recorded, ok, err := r.store.Load(ctx, r.runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load step %q: %w", name, err)
	}

	if ok {
		logger.DebugContext(ctx, "Replaying recorded step result")

		return recorded, nil
	}

	ctx, span := otelhelper.StartSpan(ctx, r.tracer, kind+" "+name,
		attribute.String(otelhelper.StepNameKey, name),
		attribute.String(otelhelper.StepKindKey, kind),
	)
	defer span.End()

	attempt := 0

	result, err := backoff.Retry(ctx, func() (json.RawMessage, error) {
		attempt++

		value, err := fn(ctx)
		if err != nil {
			if protocol.IsNonRetriable(err) {
				return nil, backoff.Permanent(err)
			}

			logger.WarnContext(ctx, "Step attempt failed", "attempt", attempt, "error", err)

			return nil, err
		}

		raw, err := json.Marshal(value)
		if err != nil {
			return nil, backoff.Permanent(protocol.NonRetriable(
				fmt.Errorf("step %q returned a result that cannot be recorded: %w", name, err)))
		}

		return raw, nil
	}, backoff.WithBackOff(r.newBackOff()), backoff.WithMaxTries(r.maxAttempts))

	span.SetAttributes(attribute.Int(otelhelper.StepAttemptKey, attempt))

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := r.store.Save(ctx, r.runID, name, result); err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to record step %q: %w", name, err)
	}

	logger.DebugContext(ctx, "Step completed", "attempts", attempt)

	return result, nil
}

// Do runs fn as a durable step and decodes its recorded result into T. The
// result goes through JSON on the first run too, so a fresh run and a replay
// observe the same value.
func Do[T any](ctx context.Context, runner protocol.StepRunner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return decode[T](runner.Run(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}))
}

// Generate is Do for model inference calls.
func Generate[T any](ctx context.Context, runner protocol.StepRunner, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	return decode[T](runner.Generate(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}))
}

func decode[T any](raw json.RawMessage, err error) (T, error) {
	var result T
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("failed to decode step result: %w", err)
	}

	return result, nil
}
