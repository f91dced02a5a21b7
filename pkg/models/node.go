// Package models defines the core domain models for workflow graph integrity and orchestration
package models

// NodeType represents the structural role of a node in the workflow graph.
type NodeType string

const (
	NodeTypeBoundaryInput  NodeType = "boundary-input"  // Workflow entry point
	NodeTypeBoundaryOutput NodeType = "boundary-output" // Workflow exit point
	NodeTypeStage          NodeType = "stage"           // Container grouping action nodes
	NodeTypeAction         NodeType = "action"          // Leaf unit of executable work
	NodeTypeNestedModel    NodeType = "nested-model"    // Embedded sub-model container
)

// Known reports whether t is one of the recognized node types.
func (t NodeType) Known() bool {
	switch t {
	case NodeTypeBoundaryInput, NodeTypeBoundaryOutput, NodeTypeStage, NodeTypeAction, NodeTypeNestedModel:
		return true
	default:
		return false
	}
}

// IsBoundary reports whether t is an input or output boundary.
func (t NodeType) IsBoundary() bool {
	return t == NodeTypeBoundaryInput || t == NodeTypeBoundaryOutput
}

// IsContainer reports whether nodes of this type may own action nodes.
func (t NodeType) IsContainer() bool {
	return t == NodeTypeStage || t == NodeTypeNestedModel
}

// NodeStatus defines the operational state of a node.
type NodeStatus string

const (
	NodeStatusActive   NodeStatus = "active"
	NodeStatusInactive NodeStatus = "inactive"
	NodeStatusError    NodeStatus = "error"
)

// Position locates a node on the authoring canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a vertex in the workflow graph.
type Node struct {
	ID           string         `json:"id"           validate:"required"`
	Name         string         `json:"name"         validate:"required,min=1"`
	Type         NodeType       `json:"type"         validate:"required"`
	Position     Position       `json:"position"`
	Dependencies []string       `json:"dependencies,omitempty"` // IDs of upstream nodes
	Status       NodeStatus     `json:"status"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Helper methods for type checking.
func (n *Node) IsBoundary() bool {
	return n.Type.IsBoundary()
}

func (n *Node) IsStage() bool {
	return n.Type == NodeTypeStage
}

func (n *Node) IsAction() bool {
	return n.Type == NodeTypeAction
}
