// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:       uuid.New().String(),
		Name:     "Test Node",
		Type:     models.NodeTypeStage,
		Status:   models.NodeStatusActive,
		Position: models.Position{X: 100, Y: 200},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithNodeID sets the node ID.
func WithNodeID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithNodeName sets the node name.
func WithNodeName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithNodeType sets the node type.
func WithNodeType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithNodeDependencies sets the upstream node IDs the node waits on.
func WithNodeDependencies(deps ...string) func(*models.Node) {
	return func(n *models.Node) {
		n.Dependencies = deps
	}
}

// WithNodeStatus sets the node status.
func WithNodeStatus(status models.NodeStatus) func(*models.Node) {
	return func(n *models.Node) {
		n.Status = status
	}
}

// CreateTestActionNode creates a test ActionNode owned by the given parent node.
func CreateTestActionNode(parentID string, overrides ...func(*models.ActionNode)) *models.ActionNode {
	action := &models.ActionNode{
		ID:        uuid.New().String(),
		Name:      "Test Action",
		ParentID:  parentID,
		Operation: models.OperationTransform,
		Config:    map[string]any{"expression": "$.payload"},
		Status:    models.NodeStatusActive,
	}

	for _, override := range overrides {
		override(action)
	}

	return action
}

// WithOperation sets the action node operation.
func WithOperation(operation models.OperationType) func(*models.ActionNode) {
	return func(a *models.ActionNode) {
		a.Operation = operation
	}
}

// WithActionConfig sets the action node configuration.
func WithActionConfig(config map[string]any) func(*models.ActionNode) {
	return func(a *models.ActionNode) {
		a.Config = config
	}
}

// CreateTestModel creates a draft test model with empty node maps.
func CreateTestModel(overrides ...func(*models.Model)) *models.Model {
	model := &models.Model{
		ID:          uuid.New().String(),
		Name:        "Test Model",
		Description: "A model for testing",
		Status:      models.ModelStatusDraft,
		Version:     "0.1.0",
		Owner:       "test-user",
		Nodes:       map[string]*models.Node{},
		ActionNodes: map[string]*models.ActionNode{},
		Metadata:    map[string]any{"category": "test"},
	}

	for _, override := range overrides {
		override(model)
	}

	return model
}

// WithModelID sets the model ID.
func WithModelID(id string) func(*models.Model) {
	return func(m *models.Model) {
		m.ID = id
	}
}

// WithModelName sets the model name.
func WithModelName(name string) func(*models.Model) {
	return func(m *models.Model) {
		m.Name = name
	}
}

// WithModelOwner sets the model owner.
func WithModelOwner(owner string) func(*models.Model) {
	return func(m *models.Model) {
		m.Owner = owner
	}
}

// WithModelStatus sets the model lifecycle status.
func WithModelStatus(status models.ModelStatus) func(*models.Model) {
	return func(m *models.Model) {
		m.Status = status
	}
}

// WithModelVersion sets the model version.
func WithModelVersion(version string) func(*models.Model) {
	return func(m *models.Model) {
		m.Version = version
	}
}

// CreateTestModelWithNodes creates a test model carrying a minimal complete
// graph: boundary input, stage with one action node, boundary output.
func CreateTestModelWithNodes(overrides ...func(*models.Model)) *models.Model {
	model := CreateTestModel(overrides...)

	ingest := CreateTestNode(WithNodeID("ingest"), WithNodeName("Ingest"), WithNodeType(models.NodeTypeBoundaryInput))
	process := CreateTestNode(WithNodeID("process"), WithNodeName("Process"), WithNodeDependencies("ingest"))
	deliver := CreateTestNode(
		WithNodeID("deliver"),
		WithNodeName("Deliver"),
		WithNodeType(models.NodeTypeBoundaryOutput),
		WithNodeDependencies("process"),
	)

	model.Nodes = map[string]*models.Node{
		"ingest":  ingest,
		"process": process,
		"deliver": deliver,
	}

	action := CreateTestActionNode("process", WithOperation(models.OperationAPICall))
	model.ActionNodes = map[string]*models.ActionNode{action.ID: action}

	return model
}

// CreateTestLink creates a test link between two entities.
func CreateTestLink(sourceEntityID, targetEntityID string, overrides ...func(*models.NodeLink)) *models.NodeLink {
	now := time.Now().UTC()
	link := &models.NodeLink{
		ID:             uuid.New().String(),
		SourceFeature:  "graph",
		TargetFeature:  "graph",
		SourceEntityID: sourceEntityID,
		TargetEntityID: targetEntityID,
		Type:           models.LinkTypeReferences,
		Strength:       0.5,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	for _, override := range overrides {
		override(link)
	}

	return link
}

// WithLinkType sets the link type.
func WithLinkType(linkType models.LinkType) func(*models.NodeLink) {
	return func(l *models.NodeLink) {
		l.Type = linkType
	}
}

// WithLinkStrength sets the link strength without range validation.
func WithLinkStrength(strength float64) func(*models.NodeLink) {
	return func(l *models.NodeLink) {
		l.Strength = strength
	}
}

// WithLinkContext sets the link context map.
func WithLinkContext(context map[string]any) func(*models.NodeLink) {
	return func(l *models.NodeLink) {
		l.Context = context
	}
}
