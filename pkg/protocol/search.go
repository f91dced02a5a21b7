package protocol

import "context"

// SearchQuery is a natural-language query plus optional filters. DomainFocus
// is an opaque hint forwarded to the provider for complex queries; the engine
// never interprets it.
type SearchQuery struct {
	Query       string            `json:"query"`
	Limit       int               `json:"limit,omitempty"`
	DomainFocus string            `json:"domain_focus,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
}

// SearchResult is one ranked candidate returned by a provider. Scoring is a
// black box to the engine, which only re-filters and re-ranks by score.
type SearchResult struct {
	EntityID    string  `json:"entity_id"`
	EntityType  string  `json:"entity_type"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
}

type SemanticSearchProvider interface {
	Search(ctx context.Context, query SearchQuery) ([]SearchResult, error)
}
