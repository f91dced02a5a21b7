package models

import "errors"

// OperationType identifies the kind of work an action node performs.
type OperationType string

const (
	OperationAPICall      OperationType = "api-call"
	OperationTransform    OperationType = "transform"
	OperationFileTransfer OperationType = "file-transfer"
	OperationNotify       OperationType = "notify"
	OperationAggregate    OperationType = "aggregate"
)

var ErrActionParentMissing = errors.New("action node requires a parent container")

// ActionNode represents a leaf unit of work owned by exactly one container node.
type ActionNode struct {
	ID        string         `json:"id"        validate:"required"`
	Name      string         `json:"name"      validate:"required,min=1"`
	ParentID  string         `json:"parent_id" validate:"required"` // Owning stage or nested-model node
	Operation OperationType  `json:"operation" validate:"required"`
	Config    map[string]any `json:"config,omitempty"`
	Status    NodeStatus     `json:"status"`
}

// ValidateOwnership checks the parent invariant: every action node declares
// exactly one parent container and never itself.
func (a *ActionNode) ValidateOwnership() error {
	if a.ParentID == "" {
		return ErrActionParentMissing
	}

	if a.ParentID == a.ID {
		return errors.New("action node cannot be its own parent")
	}

	return nil
}

// ConfigString returns the string value stored under key, if any.
func (a *ActionNode) ConfigString(key string) (string, bool) {
	if a.Config == nil {
		return "", false
	}

	value, ok := a.Config[key].(string)

	return value, ok
}

// ConfigBool returns the boolean value stored under key, false when absent.
func (a *ActionNode) ConfigBool(key string) bool {
	if a.Config == nil {
		return false
	}

	value, ok := a.Config[key].(bool)

	return ok && value
}

// ConfigNumber returns the numeric value stored under key. JSON decoding
// yields float64, handcrafted configs may carry int.
func (a *ActionNode) ConfigNumber(key string) (float64, bool) {
	if a.Config == nil {
		return 0, false
	}

	switch v := a.Config[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
