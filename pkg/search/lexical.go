// Package search provides a lexical reference implementation of the semantic
// search contract. Scoring is plain token overlap; real deployments substitute
// a provider with actual semantics behind the same interface.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/protocol"
)

const domainFocusBonus = 0.1

type LexicalProvider struct {
	logger      *slog.Logger
	persistence persistence.Persistence
}

func NewLexicalProvider(logger *slog.Logger, persistence persistence.Persistence) *LexicalProvider {
	return &LexicalProvider{
		logger:      logger.With("module", "lexical-search"),
		persistence: persistence,
	}
}

// Search ranks live models and enabled agents by token overlap with the
// query. The entity_type filter restricts the candidate set; DomainFocus
// grants a small bonus to documents mentioning the focus term.
func (p *LexicalProvider) Search(ctx context.Context, query protocol.SearchQuery) ([]protocol.SearchResult, error) {
	terms := tokenize(query.Query)
	if len(terms) == 0 {
		return []protocol.SearchResult{}, nil
	}

	results := make([]protocol.SearchResult, 0)

	entityType := query.Filters["entity_type"]

	if entityType == "" || entityType == "model" {
		modelList, err := p.persistence.ModelRepository().List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", err)
		}

		for _, model := range modelList {
			if status := query.Filters["status"]; status != "" && string(model.Status) != status {
				continue
			}

			document := model.Name + " " + model.Description
			if result, ok := p.score(terms, query.DomainFocus, model.ID, "model", document); ok {
				results = append(results, result)
			}
		}
	}

	if entityType == "" || entityType == "agent" {
		agents, err := p.persistence.AgentRepository().ListEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list agents: %w", err)
		}

		for _, agent := range agents {
			document := agent.Name + " " + agent.Kind + " " + strings.Join(agent.Capabilities.SupportedDataTypes, " ")
			if result, ok := p.score(terms, query.DomainFocus, agent.ID, "agent", document); ok {
				results = append(results, result)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}

		return results[i].EntityID < results[j].EntityID
	})

	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}

	p.logger.DebugContext(ctx, "Lexical search completed", "query", query.Query, "results", len(results))

	return results, nil
}

func (p *LexicalProvider) score(terms []string, domainFocus, entityID, entityType, document string) (protocol.SearchResult, bool) {
	documentTerms := make(map[string]bool)
	for _, term := range tokenize(document) {
		documentTerms[term] = true
	}

	matched := make([]string, 0, len(terms))

	for _, term := range terms {
		if documentTerms[term] {
			matched = append(matched, term)
		}
	}

	if len(matched) == 0 {
		return protocol.SearchResult{}, false
	}

	score := float64(len(matched)) / float64(len(terms))

	if domainFocus != "" {
		for _, focusTerm := range tokenize(domainFocus) {
			if documentTerms[focusTerm] {
				score += domainFocusBonus

				break
			}
		}
	}

	if score > 1.0 {
		score = 1.0
	}

	return protocol.SearchResult{
		EntityID:    entityID,
		EntityType:  entityType,
		Score:       score,
		Explanation: fmt.Sprintf("matched %d of %d terms: %s", len(matched), len(terms), strings.Join(matched, ", ")),
	}, true
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
