package recovery

import (
	"context"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

// CascadeOutcome is the per-model result of a cascading recovery.
type CascadeOutcome struct {
	ModelID string          `json:"model_id"`
	Result  *RecoveryResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CascadeResult reports a cascading recovery: the order in which models came
// back plus the outcome of every attempted model.
type CascadeResult struct {
	Order    []string         `json:"order"`
	Outcomes []CascadeOutcome `json:"outcomes"`
}

// CascadeRecovery restores a model and then its soft-deleted dependents,
// parent first, breadth first along dependency links. A dependent that fails
// to recover is reported and its own dependents stay deleted, since they
// would come back atop a still-deleted dependency. Only a root failure
// aborts the whole cascade.
func (m *Manager) CascadeRecovery(ctx context.Context, modelID string, opts RecoveryOptions) (*CascadeResult, error) {
	rootResult, err := m.CoordinateModelRecovery(ctx, modelID, opts)
	if err != nil {
		return nil, fmt.Errorf("cascade root recovery failed: %w", err)
	}

	result := &CascadeResult{
		Order:    []string{modelID},
		Outcomes: []CascadeOutcome{{ModelID: modelID, Result: rootResult}},
	}

	// The root's repair plan targets the root's references; dependents derive
	// their own.
	dependentOpts := opts
	dependentOpts.RepairPlan = nil

	visited := map[string]bool{modelID: true}
	frontier := []string{modelID}

	for len(frontier) > 0 {
		parent := frontier[0]
		frontier = frontier[1:]

		dependents, err := m.deletedDependents(ctx, parent, visited)
		if err != nil {
			return result, err
		}

		for _, dependent := range dependents {
			visited[dependent] = true

			dependentResult, err := m.CoordinateModelRecovery(ctx, dependent, dependentOpts)
			if err != nil {
				result.Outcomes = append(result.Outcomes, CascadeOutcome{ModelID: dependent, Error: err.Error()})

				continue
			}

			result.Order = append(result.Order, dependent)
			result.Outcomes = append(result.Outcomes, CascadeOutcome{ModelID: dependent, Result: dependentResult})
			frontier = append(frontier, dependent)
		}
	}

	m.logger.InfoContext(ctx, "Cascade recovery finished",
		"root_model_id", modelID,
		"recovered", len(result.Order),
		"attempted", len(result.Outcomes))

	return result, nil
}

// deletedDependents finds soft-deleted models holding a dependency link on
// parent that the cascade has not touched yet.
func (m *Manager) deletedDependents(ctx context.Context, parent string, visited map[string]bool) ([]string, error) {
	links, err := m.persistence.LinkRepository().ListByType(ctx, models.LinkTypeDependency)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependency links: %w", err)
	}

	seen := make(map[string]bool)

	var dependents []string

	for _, link := range links {
		candidate := link.SourceEntityID
		if link.TargetEntityID != parent || visited[candidate] || seen[candidate] {
			continue
		}

		seen[candidate] = true

		tombstone, err := m.persistence.ModelRepository().GetDeleted(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect dependent %s: %w", candidate, err)
		}

		if tombstone == nil {
			continue
		}

		dependents = append(dependents, candidate)
	}

	return dependents, nil
}
