package orchestrator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/mocks"
	"github.com/loomhq/loom/pkg/orchestrator"
	"github.com/loomhq/loom/pkg/persistence/file"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/loomhq/loom/pkg/taskqueue"
)

func newSearchCoordinator(t *testing.T, provider *mocks.MockSemanticSearchProvider) *orchestrator.Coordinator {
	t.Helper()

	logger := testLogger()
	store := file.NewPersistence(t.TempDir())

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return orchestrator.NewCoordinator(
		store, bus, registry.NewRegistry(logger), provider,
		taskqueue.NewMemoryQueue(), orchestrator.Options{}, logger,
	)
}

func TestSearchEntities_RefiltersAndReranks(t *testing.T) {
	provider := &mocks.MockSemanticSearchProvider{}
	provider.On("Search", mock.Anything, mock.Anything).Return([]protocol.SearchResult{
		{EntityID: "model-a", EntityType: "model", Score: 0.2},
		{EntityID: "model-b", EntityType: "model", Score: 0.9},
		{EntityID: "agent-c", EntityType: "agent", Score: 0.5},
	}, nil)

	coordinator := newSearchCoordinator(t, provider)

	matches, err := coordinator.SearchEntities(t.Context(), orchestrator.EntitySearchRequest{
		Query:        "invoice pipeline",
		MinRelevance: 0.4,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "model-b", matches[0].EntityID)
	assert.Equal(t, "agent-c", matches[1].EntityID)
	assert.Equal(t, `ranked 1 of 2 for "invoice pipeline"`, matches[0].Context)
	assert.Equal(t, `ranked 2 of 2 for "invoice pipeline"`, matches[1].Context)
}

func TestSearchEntities_ComplexQuerySetsDomainFocus(t *testing.T) {
	provider := &mocks.MockSemanticSearchProvider{}
	provider.On("Search", mock.Anything, mock.MatchedBy(func(query protocol.SearchQuery) bool {
		return query.DomainFocus != ""
	})).Return([]protocol.SearchResult{}, nil)

	coordinator := newSearchCoordinator(t, provider)

	_, err := coordinator.SearchEntities(t.Context(), orchestrator.EntitySearchRequest{
		Query: "models related to invoice settlement",
	})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestSearchEntities_SimpleQueryOmitsDomainFocus(t *testing.T) {
	provider := &mocks.MockSemanticSearchProvider{}
	provider.On("Search", mock.Anything, mock.MatchedBy(func(query protocol.SearchQuery) bool {
		return query.DomainFocus == ""
	})).Return([]protocol.SearchResult{}, nil)

	coordinator := newSearchCoordinator(t, provider)

	_, err := coordinator.SearchEntities(t.Context(), orchestrator.EntitySearchRequest{
		Query: "invoice pipeline",
	})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestSearchEntities_LimitTruncatesAfterReranking(t *testing.T) {
	provider := &mocks.MockSemanticSearchProvider{}
	provider.On("Search", mock.Anything, mock.Anything).Return([]protocol.SearchResult{
		{EntityID: "model-a", Score: 0.5},
		{EntityID: "model-b", Score: 0.8},
		{EntityID: "model-c", Score: 0.7},
	}, nil)

	coordinator := newSearchCoordinator(t, provider)

	matches, err := coordinator.SearchEntities(t.Context(), orchestrator.EntitySearchRequest{
		Query: "reports",
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "model-b", matches[0].EntityID)
	assert.Equal(t, "model-c", matches[1].EntityID)
}

func TestSearchEntities_EmptyQuery(t *testing.T) {
	coordinator := newSearchCoordinator(t, &mocks.MockSemanticSearchProvider{})

	_, err := coordinator.SearchEntities(t.Context(), orchestrator.EntitySearchRequest{Query: "   "})
	require.Error(t, err)
}

func TestSearchEntities_ProviderError(t *testing.T) {
	provider := &mocks.MockSemanticSearchProvider{}
	provider.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("index unavailable"))

	coordinator := newSearchCoordinator(t, provider)

	_, err := coordinator.SearchEntities(t.Context(), orchestrator.EntitySearchRequest{Query: "reports"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic search failed")
}
