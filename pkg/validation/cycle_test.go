package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
)

func dependencyLink(t *testing.T, sourceID, targetID string) *models.NodeLink {
	t.Helper()

	link, err := models.NewNodeLink("workflows", "workflows", sourceID, targetID, models.LinkTypeDependency, 0.8)
	require.NoError(t, err)

	return link
}

func TestValidateCircularDependency_TransitiveChain(t *testing.T) {
	validator := NewConnectionValidator()

	// Existing chain A -> B -> C.
	links := []*models.NodeLink{
		dependencyLink(t, "A", "B"),
		dependencyLink(t, "B", "C"),
	}

	// Proposing C -> A closes the loop.
	result := validator.ValidateCircularDependency("C", "A", links)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Connection would create circular dependency", result.Errors[0])

	// Proposing A -> D is fine: D is unconnected.
	result = validator.ValidateCircularDependency("A", "D", links)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateCircularDependency_DirectBackEdge(t *testing.T) {
	validator := NewConnectionValidator()

	links := []*models.NodeLink{dependencyLink(t, "A", "B")}

	result := validator.ValidateCircularDependency("B", "A", links)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Connection would create circular dependency")
}

func TestValidateCircularDependency_LongChain(t *testing.T) {
	validator := NewConnectionValidator()

	// A -> B -> C -> D -> E, proposing E -> A.
	links := []*models.NodeLink{
		dependencyLink(t, "A", "B"),
		dependencyLink(t, "B", "C"),
		dependencyLink(t, "C", "D"),
		dependencyLink(t, "D", "E"),
	}

	result := validator.ValidateCircularDependency("E", "A", links)
	assert.False(t, result.Valid)

	// Reversing an inner edge is also circular.
	result = validator.ValidateCircularDependency("D", "B", links)
	assert.False(t, result.Valid)
}

func TestValidateCircularDependency_NonDependencyLinksIgnored(t *testing.T) {
	validator := NewConnectionValidator()

	referenceLink, err := models.NewNodeLink("workflows", "workflows", "A", "B", models.LinkTypeReferences, 0.9)
	require.NoError(t, err)

	documentsLink, err := models.NewNodeLink("workflows", "docs", "B", "C", models.LinkTypeDocuments, 0.9)
	require.NoError(t, err)

	result := validator.ValidateCircularDependency("C", "A", []*models.NodeLink{referenceLink, documentsLink})

	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidateCircularDependency_NodeScopedLinks(t *testing.T) {
	validator := NewConnectionValidator()

	scoped := dependencyLink(t, "entity-1", "entity-2")
	require.NoError(t, scoped.ScopeToNodes("node-a", "node-b"))

	// The node pair defines the edge, not the entity pair.
	result := validator.ValidateCircularDependency("node-b", "node-a", []*models.NodeLink{scoped})
	assert.False(t, result.Valid)

	result = validator.ValidateCircularDependency("entity-2", "entity-1", []*models.NodeLink{scoped})
	assert.True(t, result.Valid)
}

func TestValidateCircularDependency_BranchingGraph(t *testing.T) {
	validator := NewConnectionValidator()

	// A fans out to B and C; only the B branch reaches E.
	links := []*models.NodeLink{
		dependencyLink(t, "A", "B"),
		dependencyLink(t, "A", "C"),
		dependencyLink(t, "B", "D"),
		dependencyLink(t, "D", "E"),
	}

	result := validator.ValidateCircularDependency("E", "A", links)
	assert.False(t, result.Valid)

	result = validator.ValidateCircularDependency("C", "B", links)
	assert.True(t, result.Valid)
}

func TestValidateCircularDependency_EmptyInputs(t *testing.T) {
	validator := NewConnectionValidator()

	result := validator.ValidateCircularDependency("", "B", nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "required")

	result = validator.ValidateCircularDependency("A", "B", nil)
	assert.True(t, result.Valid)

	result = validator.ValidateCircularDependency("A", "B", []*models.NodeLink{nil})
	assert.True(t, result.Valid)
}

func TestValidateCircularDependency_SelfDependency(t *testing.T) {
	validator := NewConnectionValidator()

	result := validator.ValidateCircularDependency("A", "A", nil)

	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Connection would create circular dependency")
}
