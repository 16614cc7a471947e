package protocol

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrNonRetriable marks failures that must not be retried by any layer:
// invalid node configuration, unknown node types and malformed graphs.
var ErrNonRetriable = errors.New("non-retriable")

type NonRetriableError struct {
	err error
}

func (e *NonRetriableError) Error() string {
	return e.err.Error()
}

func (e *NonRetriableError) Unwrap() error {
	return e.err
}

func (e *NonRetriableError) Is(target error) bool {
	return target == ErrNonRetriable //nolint:errorlint
}

// NonRetriable marks err as non-retriable and records a stack trace if err
// does not carry one yet.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}

	if IsNonRetriable(err) {
		return err
	}

	if _, ok := stackOf(err); !ok {
		err = pkgerrors.WithStack(err)
	}

	return &NonRetriableError{err: err}
}

// NonRetriablef formats a new non-retriable error.
func NonRetriablef(format string, args ...any) error {
	return &NonRetriableError{err: pkgerrors.Errorf(format, args...)}
}

func IsNonRetriable(err error) bool {
	return errors.Is(err, ErrNonRetriable)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func stackOf(err error) (pkgerrors.StackTrace, bool) {
	var tracer stackTracer
	if errors.As(err, &tracer) {
		return tracer.StackTrace(), true
	}

	return nil, false
}

// ErrorStack renders err followed by the outermost recorded stack trace, or
// just the message when none was recorded.
func ErrorStack(err error) string {
	if err == nil {
		return ""
	}

	stack, ok := stackOf(err)
	if !ok {
		return err.Error()
	}

	return fmt.Sprintf("%s%+v", err.Error(), stack)
}
