// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/nodeflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest        = errors.New("invalid request")
	ErrEmptyOwnerID          = errors.New("owner ID cannot be empty")
	ErrWorkflowNameRequired  = errors.New("workflow name is required")
	ErrWorkflowNil           = errors.New("workflow cannot be nil")
	ErrInvalidNodeType       = errors.New("invalid node type")
	ErrInvalidGraph          = errors.New("invalid workflow graph")
	ErrInvalidCredentialType = errors.New("invalid credential type")
	ErrInvalidFormPayload    = errors.New("invalid google form payload")
)

// Not found errors are the persistence ones, so callers can use either set of
// helpers. Records owned by another user are reported as not found.
var (
	ErrWorkflowNotFound   = persistence.ErrWorkflowNotFound
	ErrExecutionNotFound  = persistence.ErrExecutionNotFound
	ErrCredentialNotFound = persistence.ErrCredentialNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrEmptyOwnerID) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrInvalidNodeType) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrInvalidCredentialType) ||
		errors.Is(err, ErrInvalidFormPayload)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsWorkflowNotFound(err) ||
		persistence.IsExecutionNotFound(err) ||
		persistence.IsCredentialNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
