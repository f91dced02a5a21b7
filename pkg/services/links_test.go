package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence/file"
	"github.com/loomhq/loom/pkg/services"
)

func newLinksService(t *testing.T) *services.Links {
	t.Helper()

	return services.NewLinks(file.NewPersistence(t.TempDir()), testLogger())
}

func TestConnect_StoresValidatedLink(t *testing.T) {
	svc := newLinksService(t)

	link, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceFeature:  "billing",
		TargetFeature:  "ledger",
		SourceEntityID: "model-billing",
		TargetEntityID: "model-ledger",
		Type:           models.LinkTypeDependency,
		Strength:       0.8,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, link.ID)
	assert.False(t, link.CreatedAt.IsZero())
	assert.True(t, link.IsStrong())

	listed, err := svc.ListForEntity(t.Context(), "model-billing")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, link.ID, listed[0].ID)
}

func TestConnect_ScopesToNodes(t *testing.T) {
	svc := newLinksService(t)

	link, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-billing",
		TargetEntityID: "model-ledger",
		SourceNodeID:   "export",
		TargetNodeID:   "import",
		Type:           models.LinkTypeReferences,
		Strength:       0.5,
	})
	require.NoError(t, err)

	assert.True(t, link.IsNodeScoped())
	assert.Equal(t, "export", link.SourceNodeID)
	assert.Equal(t, "import", link.TargetNodeID)
}

func TestConnect_RejectsIncompleteNodePair(t *testing.T) {
	svc := newLinksService(t)

	_, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-billing",
		TargetEntityID: "model-ledger",
		SourceNodeID:   "export",
		Type:           models.LinkTypeReferences,
		Strength:       0.5,
	})
	require.Error(t, err)
}

func TestConnect_RejectsDependencyCycle(t *testing.T) {
	svc := newLinksService(t)

	_, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-a",
		TargetEntityID: "model-b",
		Type:           models.LinkTypeDependency,
		Strength:       0.9,
	})
	require.NoError(t, err)

	_, err = svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-b",
		TargetEntityID: "model-c",
		Type:           models.LinkTypeDependency,
		Strength:       0.9,
	})
	require.NoError(t, err)

	// Closing the chain back to its start is a transitive cycle.
	_, err = svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-c",
		TargetEntityID: "model-a",
		Type:           models.LinkTypeDependency,
		Strength:       0.9,
	})
	require.ErrorContains(t, err, "circular dependency")
}

func TestConnect_NonDependencyLinksSkipCycleCheck(t *testing.T) {
	svc := newLinksService(t)

	_, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-a",
		TargetEntityID: "model-b",
		Type:           models.LinkTypeDependency,
		Strength:       0.9,
	})
	require.NoError(t, err)

	// A documentation link in the reverse direction carries no dependency
	// semantics and stays legal.
	_, err = svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-b",
		TargetEntityID: "model-a",
		Type:           models.LinkTypeDocuments,
		Strength:       0.3,
	})
	require.NoError(t, err)
}

func TestConnect_RejectsInvalidStrength(t *testing.T) {
	svc := newLinksService(t)

	_, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-a",
		TargetEntityID: "model-b",
		Type:           models.LinkTypeDependency,
		Strength:       1.5,
	})
	require.ErrorIs(t, err, models.ErrInvalidLinkStrength)
}

func TestReweigh_UpdatesStrength(t *testing.T) {
	svc := newLinksService(t)

	link, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-a",
		TargetEntityID: "model-b",
		Type:           models.LinkTypeSupports,
		Strength:       0.4,
	})
	require.NoError(t, err)

	updated, err := svc.Reweigh(t.Context(), link.ID, 0.9)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, updated.Strength, 0.0001)
	assert.True(t, updated.IsStrong())

	_, err = svc.Reweigh(t.Context(), link.ID, 1.5)
	require.ErrorIs(t, err, models.ErrInvalidLinkStrength)
}

func TestReweigh_UnknownLink(t *testing.T) {
	svc := newLinksService(t)

	_, err := svc.Reweigh(t.Context(), "link-ghost", 0.5)
	require.ErrorIs(t, err, services.ErrLinkNotFound)
}

func TestRemove_DeletesLink(t *testing.T) {
	svc := newLinksService(t)

	link, err := svc.Connect(t.Context(), services.ConnectRequest{
		SourceEntityID: "model-a",
		TargetEntityID: "model-b",
		Type:           models.LinkTypeSupports,
		Strength:       0.4,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(t.Context(), link.ID))

	listed, err := svc.ListForEntity(t.Context(), "model-a")
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.ErrorIs(t, svc.Remove(t.Context(), link.ID), services.ErrLinkNotFound)
}
