package validation

import (
	"github.com/loomhq/loom/pkg/models"
)

// ValidateCircularDependency checks whether adding a dependency edge from
// source to target would close a cycle in the existing link graph. Only
// dependency-typed links contribute edges; node-scoped links connect their
// nodes, entity-level links connect their entities.
//
// The search walks depth-first from the proposed target looking for the
// proposed source: if the source is reachable, the new edge would complete a
// cycle. Transitive chains of any length are caught, not just direct
// back-edges.
func (v *ConnectionValidator) ValidateCircularDependency(sourceID, targetID string, existingLinks []*models.NodeLink) *models.ValidationResult {
	result := models.NewValidationResult()

	if sourceID == "" || targetID == "" {
		result.AddError("Source and target are required for circular dependency validation.")

		return result
	}

	adjacency := buildDependencyAdjacency(existingLinks)

	if reachable(adjacency, targetID, sourceID) {
		result.AddError("Connection would create circular dependency")
	}

	return result
}

// buildDependencyAdjacency maps each endpoint to the endpoints it points at,
// considering dependency-typed links only.
func buildDependencyAdjacency(links []*models.NodeLink) map[string][]string {
	adjacency := make(map[string][]string)

	for _, link := range links {
		if link == nil || link.Type != models.LinkTypeDependency {
			continue
		}

		from, to := linkEndpoints(link)
		if from == "" || to == "" {
			continue
		}

		adjacency[from] = append(adjacency[from], to)
	}

	return adjacency
}

// linkEndpoints resolves the graph keys a link connects: the node pair when
// the link is node-scoped, the entity pair otherwise.
func linkEndpoints(link *models.NodeLink) (string, string) {
	if link.IsNodeScoped() {
		return link.SourceNodeID, link.TargetNodeID
	}

	return link.SourceEntityID, link.TargetEntityID
}

// reachable reports whether goal can be reached from start by following the
// adjacency edges. Iterative depth-first walk with a visited set, so broken
// references and dense graphs terminate cleanly.
func reachable(adjacency map[string][]string, start, goal string) bool {
	if start == goal {
		return true
	}

	visited := make(map[string]bool)
	stack := []string{start}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[current] {
			continue
		}

		visited[current] = true

		for _, next := range adjacency[current] {
			if next == goal {
				return true
			}

			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}

	return false
}
