package search_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/persistence/file"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/search"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedCorpus(t *testing.T) persistence.Persistence {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	modelFixtures := []*models.Model{
		{
			ID:          "model-etl",
			Name:        "Invoice ETL Pipeline",
			Description: "Extracts invoice data and loads it into the warehouse",
			Status:      models.ModelStatusPublished,
			Version:     "1.0.0",
		},
		{
			ID:          "model-report",
			Name:        "Monthly Report Builder",
			Description: "Aggregates warehouse tables into monthly reports",
			Status:      models.ModelStatusDraft,
			Version:     "0.3.0",
		},
	}

	for _, model := range modelFixtures {
		require.NoError(t, store.ModelRepository().Save(t.Context(), model))
	}

	agentFixtures := []*models.Agent{
		{
			ID:      "agent-invoice",
			Name:    "Invoice Parser",
			Kind:    "local",
			Enabled: true,
			Capabilities: models.AgentCapabilities{
				CanRead:            true,
				SupportedDataTypes: []string{"json", "csv"},
			},
		},
		{
			ID:      "agent-disabled",
			Name:    "Invoice Archiver",
			Kind:    "local",
			Enabled: false,
		},
	}

	for _, agent := range agentFixtures {
		require.NoError(t, store.AgentRepository().Save(t.Context(), agent))
	}

	return store
}

func TestLexicalProvider_RanksByTokenOverlap(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	results, err := provider.Search(t.Context(), protocol.SearchQuery{Query: "invoice warehouse data"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// model-etl matches all three terms; everything else matches fewer.
	assert.Equal(t, "model-etl", results[0].EntityID)
	assert.Equal(t, "model", results[0].EntityType)
	assert.InDelta(t, 1.0, results[0].Score, 0.001)
	assert.Contains(t, results[0].Explanation, "invoice")
	assert.Contains(t, results[0].Explanation, "warehouse")

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestLexicalProvider_SkipsDisabledAgents(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	results, err := provider.Search(t.Context(), protocol.SearchQuery{
		Query:   "invoice",
		Filters: map[string]string{"entity_type": "agent"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "agent-invoice", results[0].EntityID)
	assert.Equal(t, "agent", results[0].EntityType)
}

func TestLexicalProvider_EntityTypeFilter(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	results, err := provider.Search(t.Context(), protocol.SearchQuery{
		Query:   "invoice",
		Filters: map[string]string{"entity_type": "model"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for _, result := range results {
		assert.Equal(t, "model", result.EntityType)
	}
}

func TestLexicalProvider_StatusFilter(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	results, err := provider.Search(t.Context(), protocol.SearchQuery{
		Query:   "warehouse",
		Filters: map[string]string{"entity_type": "model", "status": "published"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "model-etl", results[0].EntityID)
}

func TestLexicalProvider_DomainFocusBoostsMatches(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	// Both models match "warehouse throughput" on one term; the focus hint
	// breaks the tie in favor of the report builder.
	results, err := provider.Search(t.Context(), protocol.SearchQuery{
		Query:       "warehouse throughput",
		DomainFocus: "reports",
		Filters:     map[string]string{"entity_type": "model"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "model-report", results[0].EntityID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestLexicalProvider_Limit(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	results, err := provider.Search(t.Context(), protocol.SearchQuery{Query: "invoice", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLexicalProvider_EmptyQuery(t *testing.T) {
	t.Parallel()

	provider := search.NewLexicalProvider(testLogger(), seedCorpus(t))

	results, err := provider.Search(t.Context(), protocol.SearchQuery{Query: "  "})
	require.NoError(t, err)
	assert.Empty(t, results)
}
