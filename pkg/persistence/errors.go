// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrModelNotFound indicates a model was not found by the given identifier.
	ErrModelNotFound = errors.New("model not found")

	// ErrDeletedModelNotFound indicates no soft-deleted model exists for the given identifier.
	ErrDeletedModelNotFound = errors.New("deleted model not found")

	// ErrModelAlreadyExists indicates a model with the same identifier already exists.
	ErrModelAlreadyExists = errors.New("model already exists")

	// ErrInvalidModelStatus indicates an invalid model status was provided.
	ErrInvalidModelStatus = errors.New("invalid model status")

	// ErrAgentNotFound indicates an agent was not found by the given identifier.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentAlreadyExists indicates an agent with the same identifier already exists.
	ErrAgentAlreadyExists = errors.New("agent already exists")

	// ErrLinkNotFound indicates a node link was not found by the given identifier.
	ErrLinkNotFound = errors.New("link not found")

	// ErrAuditEntryNotFound indicates an audit entry was not found.
	ErrAuditEntryNotFound = errors.New("audit entry not found")
)

// ModelError wraps model-related errors with additional context.
type ModelError struct {
	Op      string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	ModelID string // Model ID if applicable
	Err     error  // Underlying error
	Message string // Additional context message
}

func (e *ModelError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for model %s: %s (%v)", e.Op, e.ModelID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for model %s: %v", e.Op, e.ModelID, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for model errors.
func (e *ModelError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewModelError creates a new model error with context.
func NewModelError(op, modelID string, err error) *ModelError {
	return &ModelError{
		Op:      op,
		ModelID: modelID,
		Err:     err,
	}
}

// AgentError wraps agent-related errors with additional context.
type AgentError struct {
	Op      string // Operation being performed
	AgentID string // Agent ID
	Err     error  // Underlying error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s operation failed for agent %s: %v", e.Op, e.AgentID, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

func (e *AgentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewAgentError creates a new agent error with context.
func NewAgentError(op, agentID string, err error) *AgentError {
	return &AgentError{
		Op:      op,
		AgentID: agentID,
		Err:     err,
	}
}

// LinkError wraps link-related errors with additional context.
type LinkError struct {
	Op     string // Operation being performed
	LinkID string // Link ID
	Err    error  // Underlying error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s operation failed for link %s: %v", e.Op, e.LinkID, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func (e *LinkError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewLinkError creates a new link error with context.
func NewLinkError(op, linkID string, err error) *LinkError {
	return &LinkError{
		Op:     op,
		LinkID: linkID,
		Err:    err,
	}
}

// IsModelNotFound checks if an error indicates a model was not found.
func IsModelNotFound(err error) bool {
	return errors.Is(err, ErrModelNotFound)
}

// IsDeletedModelNotFound checks if an error indicates a soft-deleted model was not found.
func IsDeletedModelNotFound(err error) bool {
	return errors.Is(err, ErrDeletedModelNotFound)
}

// IsModelAlreadyExists checks if an error indicates a model already exists.
func IsModelAlreadyExists(err error) bool {
	return errors.Is(err, ErrModelAlreadyExists)
}

// IsAgentNotFound checks if an error indicates an agent was not found.
func IsAgentNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound)
}

// IsLinkNotFound checks if an error indicates a link was not found.
func IsLinkNotFound(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}
