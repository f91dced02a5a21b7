package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel() *Model {
	return &Model{
		ID:      "model-1",
		Name:    "Order Intake",
		Status:  ModelStatusDraft,
		Version: "1.2.0",
		Nodes: map[string]*Node{
			"input-1": {
				ID:   "input-1",
				Name: "Start",
				Type: NodeTypeBoundaryInput,
			},
			"stage-1": {
				ID:           "stage-1",
				Name:         "Processing",
				Type:         NodeTypeStage,
				Dependencies: []string{"input-1"},
			},
		},
		ActionNodes: map[string]*ActionNode{
			"action-1": {
				ID:        "action-1",
				Name:      "Fetch Orders",
				ParentID:  "stage-1",
				Operation: OperationAPICall,
				Config:    map[string]any{"endpoint": "https://api.example.com/orders"},
			},
		},
		Metadata:    map[string]any{"team": "fulfillment"},
		Permissions: map[string]string{"user-1": "owner", "user-2": "viewer"},
		Owner:       "user-1",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestModel_SoftDelete(t *testing.T) {
	model := testModel()
	require.False(t, model.IsDeleted())

	model.SoftDelete("user-1")

	assert.True(t, model.IsDeleted())
	assert.NotNil(t, model.DeletedAt)
	assert.Equal(t, "user-1", model.DeletedBy)

	// Data survives the deletion.
	assert.Len(t, model.Nodes, 2)
	assert.Len(t, model.ActionNodes, 1)
}

func TestModel_Undelete(t *testing.T) {
	model := testModel()
	model.SoftDelete("user-1")

	model.Undelete()

	assert.False(t, model.IsDeleted())
	assert.Nil(t, model.DeletedAt)
	assert.Empty(t, model.DeletedBy)
}

func TestModel_Role(t *testing.T) {
	model := testModel()

	role, ok := model.Role("user-1")
	assert.True(t, ok)
	assert.Equal(t, "owner", role)

	_, ok = model.Role("stranger")
	assert.False(t, ok)

	model.Permissions = nil
	_, ok = model.Role("user-1")
	assert.False(t, ok)
}

func TestModel_Clone_DeepCopy(t *testing.T) {
	original := testModel()
	original.SoftDelete("user-1")

	clone := original.Clone()
	require.NotNil(t, clone)

	// Mutations on the clone never reach the original.
	clone.Nodes["input-1"].Name = "Renamed"
	clone.Nodes["stage-1"].Dependencies[0] = "other"
	clone.ActionNodes["action-1"].Config["endpoint"] = "https://evil.example.com"
	clone.Metadata["team"] = "sabotage"
	clone.Permissions["user-2"] = "owner"
	clone.Undelete()

	assert.Equal(t, "Start", original.Nodes["input-1"].Name)
	assert.Equal(t, "input-1", original.Nodes["stage-1"].Dependencies[0])
	assert.Equal(t, "https://api.example.com/orders", original.ActionNodes["action-1"].Config["endpoint"])
	assert.Equal(t, "fulfillment", original.Metadata["team"])
	assert.Equal(t, "viewer", original.Permissions["user-2"])
	assert.True(t, original.IsDeleted())
	assert.NotNil(t, original.DeletedAt)
}

func TestModel_Clone_Nil(t *testing.T) {
	var model *Model

	assert.Nil(t, model.Clone())
}

func TestActionNode_ValidateOwnership(t *testing.T) {
	action := &ActionNode{ID: "action-1", Name: "Step", ParentID: "stage-1", Operation: OperationTransform}
	assert.NoError(t, action.ValidateOwnership())

	action.ParentID = ""
	assert.ErrorIs(t, action.ValidateOwnership(), ErrActionParentMissing)

	action.ParentID = "action-1"
	assert.Error(t, action.ValidateOwnership())
}

func TestNodeType_Known(t *testing.T) {
	for _, nodeType := range []NodeType{
		NodeTypeBoundaryInput, NodeTypeBoundaryOutput, NodeTypeStage, NodeTypeAction, NodeTypeNestedModel,
	} {
		assert.True(t, nodeType.Known(), string(nodeType))
	}

	assert.False(t, NodeType("widget").Known())
	assert.False(t, NodeType("").Known())
}
