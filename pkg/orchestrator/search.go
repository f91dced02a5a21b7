package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/loomhq/loom/pkg/protocol"
)

// complexQueryWordCount is the length at which a query is treated as
// complex enough to warrant a domain-focus hint for the provider.
const complexQueryWordCount = 4

// domainFocusHint is forwarded opaquely to the search provider for complex
// queries. The coordinator never interprets it.
const domainFocusHint = "workflow orchestration"

// EntitySearchRequest is a natural-language lookup across models and agents.
type EntitySearchRequest struct {
	Query        string            `json:"query"`
	MinRelevance float64           `json:"min_relevance"`
	Limit        int               `json:"limit,omitempty"`
	Filters      map[string]string `json:"filters,omitempty"`
}

// EntityMatch is a provider result the coordinator kept, re-ranked and
// annotated with its position context.
type EntityMatch struct {
	protocol.SearchResult

	Context string `json:"context"`
}

// SearchEntities delegates the query to the semantic search provider, then
// re-filters by minimum relevance and re-ranks. The provider's scoring is a
// black box; only the threshold and ordering are enforced here.
func (c *Coordinator) SearchEntities(ctx context.Context, request EntitySearchRequest) ([]EntityMatch, error) {
	if strings.TrimSpace(request.Query) == "" {
		return nil, fmt.Errorf("search query must not be empty")
	}

	query := protocol.SearchQuery{
		Query:   request.Query,
		Limit:   0, // The provider returns everything; filtering happens here.
		Filters: request.Filters,
	}

	if isComplexQuery(request.Query) {
		query.DomainFocus = domainFocusHint
	}

	results, err := c.search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}

	kept := make([]EntityMatch, 0, len(results))

	for _, result := range results {
		if result.Score < request.MinRelevance {
			continue
		}

		kept = append(kept, EntityMatch{SearchResult: result})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}

		return kept[i].EntityID < kept[j].EntityID
	})

	if request.Limit > 0 && len(kept) > request.Limit {
		kept = kept[:request.Limit]
	}

	for i := range kept {
		kept[i].Context = fmt.Sprintf("ranked %d of %d for %q", i+1, len(kept), request.Query)
	}

	c.logger.DebugContext(ctx, "Semantic search completed", "query", request.Query, "kept", len(kept), "fetched", len(results))

	return kept, nil
}

// isComplexQuery reports whether the query is long or conjunctive enough to
// benefit from a domain-focus hint.
func isComplexQuery(query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) >= complexQueryWordCount {
		return true
	}

	for _, word := range words {
		switch word {
		case "and", "with", "related", "between":
			return true
		}
	}

	return false
}
