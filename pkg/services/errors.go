// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"
)

// Business logic errors. Validation errors indicate a bad request, conflict
// errors a state transition the lifecycle forbids.
var (
	ErrModelNotFound         = errors.New("model not found")
	ErrModelNil              = errors.New("model cannot be nil")
	ErrModelNameRequired     = errors.New("model name is required")
	ErrNodesRequired         = errors.New("model must have at least one node")
	ErrBoundaryNodesRequired = errors.New("model must have boundary input and output nodes")
	ErrEmptyActor            = errors.New("actor cannot be empty")
	ErrInvalidStrength       = errors.New("link strength must be between 0.0 and 1.0")

	ErrLinkNotFound = errors.New("link not found")

	// Lifecycle conflicts.
	ErrNotDraft              = errors.New("only draft models can be published")
	ErrNotPublished          = errors.New("only published models can be archived")
	ErrCannotModifyPublished = errors.New("cannot modify published model")
	ErrCannotModifyArchived  = errors.New("cannot modify archived model")
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

// IsValidationError checks if an error stems from bad input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrModelNil) ||
		errors.Is(err, ErrModelNameRequired) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrBoundaryNodesRequired) ||
		errors.Is(err, ErrEmptyActor) ||
		errors.Is(err, ErrInvalidStrength)
}

// IsConflictError checks if an error is a lifecycle transition conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNotDraft) ||
		errors.Is(err, ErrNotPublished) ||
		errors.Is(err, ErrCannotModifyPublished) ||
		errors.Is(err, ErrCannotModifyArchived)
}

// IsNotFoundError checks if an error means the entity does not exist.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrModelNotFound) ||
		errors.Is(err, ErrLinkNotFound)
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
