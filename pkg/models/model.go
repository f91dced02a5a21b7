package models

import "time"

// ModelStatus represents the lifecycle state of a workflow model.
type ModelStatus string

const (
	ModelStatusDraft     ModelStatus = "draft"     // Editable, not executable
	ModelStatusPublished ModelStatus = "published" // Current active, executable
	ModelStatusArchived  ModelStatus = "archived"  // Historical, not executable
)

// Model is the aggregate root of a workflow: it exclusively owns its node and
// action-node maps, while links reference it from the outside.
type Model struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"    validate:"required,min=3"`
	Description string                 `json:"description,omitempty"`
	Status      ModelStatus            `json:"status"  validate:"required"`
	Version     string                 `json:"version" validate:"required"` // Semantic version string
	Nodes       map[string]*Node       `json:"nodes"`
	ActionNodes map[string]*ActionNode `json:"action_nodes"`
	Metadata    map[string]any         `json:"metadata,omitempty"`
	Permissions map[string]string      `json:"permissions,omitempty"` // actor -> role (owner, admin, editor, viewer)
	Owner       string                 `json:"owner"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	Deleted     bool                   `json:"deleted"`
	DeletedAt   *time.Time             `json:"deleted_at,omitempty"`
	DeletedBy   string                 `json:"deleted_by,omitempty"`
}

// SoftDelete marks the model deleted without discarding its data. The row
// stays recoverable until the retention window closes.
func (m *Model) SoftDelete(actor string) {
	now := time.Now().UTC()
	m.Deleted = true
	m.DeletedAt = &now
	m.DeletedBy = actor
	m.UpdatedAt = now
}

// Undelete clears the soft-delete markers, making the model live again.
func (m *Model) Undelete() {
	m.Deleted = false
	m.DeletedAt = nil
	m.DeletedBy = ""
	m.UpdatedAt = time.Now().UTC()
}

// IsDeleted reports whether the model is currently soft-deleted.
func (m *Model) IsDeleted() bool {
	return m.Deleted
}

// Role returns the permission role held by actor, if any.
func (m *Model) Role(actor string) (string, bool) {
	if m.Permissions == nil {
		return "", false
	}

	role, ok := m.Permissions[actor]

	return role, ok
}

// Clone returns a deep copy of the model. Mutating the copy never leaks into
// the original, which lets callers validate or repair a snapshot in isolation.
func (m *Model) Clone() *Model {
	if m == nil {
		return nil
	}

	clone := *m
	clone.Nodes = make(map[string]*Node, len(m.Nodes))

	for id, node := range m.Nodes {
		nodeCopy := *node
		nodeCopy.Dependencies = append([]string(nil), node.Dependencies...)
		nodeCopy.Metadata = copyMap(node.Metadata)
		clone.Nodes[id] = &nodeCopy
	}

	clone.ActionNodes = make(map[string]*ActionNode, len(m.ActionNodes))

	for id, action := range m.ActionNodes {
		actionCopy := *action
		actionCopy.Config = copyMap(action.Config)
		clone.ActionNodes[id] = &actionCopy
	}

	clone.Metadata = copyMap(m.Metadata)
	clone.Permissions = copyStringMap(m.Permissions)
	clone.DeletedAt = copyTimePointer(m.DeletedAt)

	return &clone
}

func copyMap(original map[string]any) map[string]any {
	if original == nil {
		return nil
	}

	copied := make(map[string]any, len(original))
	for key, value := range original {
		copied[key] = value
	}

	return copied
}

func copyStringMap(original map[string]string) map[string]string {
	if original == nil {
		return nil
	}

	copied := make(map[string]string, len(original))
	for key, value := range original {
		copied[key] = value
	}

	return copied
}

func copyTimePointer(original *time.Time) *time.Time {
	if original == nil {
		return nil
	}

	copied := *original

	return &copied
}
