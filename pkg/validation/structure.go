package validation

import (
	"fmt"
	"sort"

	"github.com/loomhq/loom/pkg/models"
)

// MinMeaningfulNodes is the node count below which a workflow is flagged as
// too small to process anything useful.
const MinMeaningfulNodes = 3

// ValidateWorkflowStructure runs the structural sanity pass over a graph
// snapshot: presence of nodes, container ownership, and boundary wiring.
// Partially loaded graphs degrade to warnings rather than errors so callers
// can keep editing.
func (v *ConnectionValidator) ValidateWorkflowStructure(nodes map[string]*models.Node, actionNodes map[string]*models.ActionNode, links []*models.NodeLink) *models.ValidationResult {
	result := models.NewValidationResult()

	if len(nodes) == 0 {
		result.AddError("Workflow has no nodes.")

		return result
	}

	if len(nodes) < MinMeaningfulNodes {
		result.AddWarning(fmt.Sprintf("Workflow has insufficient nodes for meaningful processing (%d of at least %d).", len(nodes), MinMeaningfulNodes))
	}

	// Map iteration order is random; sort IDs so findings come out in a
	// stable order for identical input.
	for _, actionID := range sortedActionIDs(actionNodes) {
		action := actionNodes[actionID]

		if action.ParentID == "" {
			result.AddWarning(fmt.Sprintf("Action node %q declares no parent container.", action.ID))

			continue
		}

		parent, ok := nodes[action.ParentID]
		if !ok {
			result.AddWarning(fmt.Sprintf("Action node %q references missing parent %q.", action.ID, action.ParentID))

			continue
		}

		if !parent.Type.IsContainer() {
			result.AddWarning(fmt.Sprintf("Action node %q has non-container parent %q.", action.ID, action.ParentID))
		}
	}

	incoming := incomingDependencyTargets(links)

	for _, nodeID := range sortedNodeIDs(nodes) {
		node := nodes[nodeID]
		if node.Type != models.NodeTypeBoundaryOutput {
			continue
		}

		if len(node.Dependencies) == 0 && !incoming[node.ID] {
			result.AddWarning(fmt.Sprintf("Output node %q has no input dependencies.", node.Name))
		}
	}

	return result
}

// incomingDependencyTargets collects every endpoint that a dependency-typed
// link points at.
func incomingDependencyTargets(links []*models.NodeLink) map[string]bool {
	targets := make(map[string]bool)

	for _, link := range links {
		if link == nil || link.Type != models.LinkTypeDependency {
			continue
		}

		_, to := linkEndpoints(link)
		if to != "" {
			targets[to] = true
		}
	}

	return targets
}

func sortedNodeIDs(nodes map[string]*models.Node) []string {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

func sortedActionIDs(actionNodes map[string]*models.ActionNode) []string {
	ids := make([]string, 0, len(actionNodes))
	for id := range actionNodes {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
