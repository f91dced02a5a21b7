// Package integrity implements the dependency and version service contracts
// over the engine's own repositories. It is the reference implementation used
// by the CLI and single-node deployments; distributed setups substitute their
// own services behind the same interfaces.
package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

// versionPinKey is the link context entry a dependent uses to pin the
// version of the model it depends on.
const versionPinKey = "required_version"

type Checker struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewChecker(persistence persistence.Persistence, logger *slog.Logger) *Checker {
	return &Checker{
		persistence: persistence,
		logger:      logger.With("module", "integrity"),
	}
}

// ValidateDependencyIntegrity classifies every link touching the model. A
// dependency target that only survives as a deleted snapshot is a missing
// dependency: restoring the snapshot fixes the edge. A link whose far
// endpoint has neither a live model nor a snapshot is a broken reference:
// nothing can come back, so the edge itself has to go.
func (c *Checker) ValidateDependencyIntegrity(ctx context.Context, modelID string) (*models.IntegrityReport, error) {
	links, err := c.persistence.LinkRepository().ListByEntity(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links of model %s: %w", modelID, err)
	}

	report := &models.IntegrityReport{Intact: true}
	missingSeen := make(map[string]bool)

	for _, link := range links {
		other := link.TargetEntityID
		if other == modelID {
			other = link.SourceEntityID
		}

		live, err := c.persistence.ModelRepository().GetByID(ctx, other)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve linked entity %s: %w", other, err)
		}

		if live != nil {
			continue
		}

		tombstone, err := c.persistence.ModelRepository().GetDeleted(ctx, other)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect deleted snapshot of %s: %w", other, err)
		}

		switch {
		case tombstone != nil && link.Type == models.LinkTypeDependency && link.SourceEntityID == modelID:
			if !missingSeen[other] {
				missingSeen[other] = true

				report.MissingDependencies = append(report.MissingDependencies, other)
			}
		case tombstone != nil:
			// The far side can still come back within its recovery window;
			// the reference is dormant, not broken.
			continue
		default:
			report.BrokenReferences = append(report.BrokenReferences, link.ID)
		}
	}

	report.Intact = len(report.BrokenReferences) == 0 && len(report.MissingDependencies) == 0

	return report, nil
}

// RepairBrokenReferences executes the plan in order and returns the targets
// it repaired. A relink without a surviving substitute target degrades to
// removing the edge. The first failing action aborts the rest.
func (c *Checker) RepairBrokenReferences(ctx context.Context, modelID string, plan *models.RepairPlan) ([]string, error) {
	if plan.IsEmpty() {
		return nil, nil
	}

	repaired := make([]string, 0, len(plan.Actions))

	for _, action := range plan.Actions {
		switch action.Action {
		case models.RepairRestoreDependency:
			if err := c.restoreDependency(ctx, action.Target); err != nil {
				return repaired, err
			}
		case models.RepairRelink, models.RepairRemoveReference:
			if err := c.removeLink(ctx, action.Target); err != nil {
				return repaired, err
			}
		default:
			return repaired, fmt.Errorf("unsupported repair action %q for target %s", action.Action, action.Target)
		}

		repaired = append(repaired, action.Target)
	}

	c.logger.InfoContext(ctx, "Executed repair plan",
		"model_id", modelID,
		"actions", len(plan.Actions))

	return repaired, nil
}

func (c *Checker) restoreDependency(ctx context.Context, modelID string) error {
	tombstone, err := c.persistence.ModelRepository().GetDeleted(ctx, modelID)
	if err != nil {
		return fmt.Errorf("failed to fetch deleted dependency %s: %w", modelID, err)
	}

	if tombstone == nil {
		return fmt.Errorf("missing dependency %s has no deleted snapshot to restore", modelID)
	}

	restored := tombstone.Clone()
	restored.Undelete()

	err = c.persistence.ModelRepository().Save(ctx, restored)
	if err != nil {
		return fmt.Errorf("failed to restore dependency %s: %w", modelID, err)
	}

	c.logger.InfoContext(ctx, "Restored missing dependency", "model_id", modelID)

	return nil
}

func (c *Checker) removeLink(ctx context.Context, linkID string) error {
	link, err := c.persistence.LinkRepository().GetByID(ctx, linkID)
	if err != nil {
		return fmt.Errorf("failed to fetch link %s: %w", linkID, err)
	}

	if link == nil {
		return nil
	}

	err = c.persistence.LinkRepository().Delete(ctx, linkID)
	if err != nil {
		return fmt.Errorf("failed to remove broken link %s: %w", linkID, err)
	}

	c.logger.InfoContext(ctx, "Removed broken reference", "link_id", linkID)

	return nil
}

// ValidateVersionCompatibility checks each dependent's pinned version against
// the version the model would come back on. Dependents without a pin accept
// any version.
func (c *Checker) ValidateVersionCompatibility(ctx context.Context, model *models.Model) (*models.CompatibilityReport, error) {
	links, err := c.persistence.LinkRepository().ListByType(ctx, models.LinkTypeDependency)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependency links: %w", err)
	}

	report := &models.CompatibilityReport{Compatible: true}

	for _, link := range links {
		if link.TargetEntityID != model.ID {
			continue
		}

		pin := pinnedVersion(link)
		if pin == "" || pin == model.Version {
			continue
		}

		report.Conflicts = append(report.Conflicts, models.VersionConflict{
			DependentID:     link.SourceEntityID,
			RequiredVersion: pin,
			ActualVersion:   model.Version,
		})
	}

	report.Compatible = len(report.Conflicts) == 0

	return report, nil
}

// ResolveVersionDependencies re-pins each conflicting dependent to the
// version the model actually carries.
func (c *Checker) ResolveVersionDependencies(ctx context.Context, modelID string, conflicts []models.VersionConflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	links, err := c.persistence.LinkRepository().ListByType(ctx, models.LinkTypeDependency)
	if err != nil {
		return fmt.Errorf("failed to list dependency links: %w", err)
	}

	byDependent := make(map[string]*models.NodeLink)

	for _, link := range links {
		if link.TargetEntityID == modelID {
			byDependent[link.SourceEntityID] = link
		}
	}

	for _, conflict := range conflicts {
		link, ok := byDependent[conflict.DependentID]
		if !ok {
			return fmt.Errorf("no dependency link from %s to %s to re-pin", conflict.DependentID, modelID)
		}

		if link.Context == nil {
			link.Context = make(map[string]any)
		}

		link.Context[versionPinKey] = conflict.ActualVersion
		link.UpdatedAt = time.Now().UTC()

		err = c.persistence.LinkRepository().Save(ctx, link)
		if err != nil {
			return fmt.Errorf("failed to re-pin dependency link %s: %w", link.ID, err)
		}

		c.logger.InfoContext(ctx, "Re-pinned dependent to restored version",
			"dependent_id", conflict.DependentID,
			"version", conflict.ActualVersion)
	}

	return nil
}

func pinnedVersion(link *models.NodeLink) string {
	if link.Context == nil {
		return ""
	}

	pin, _ := link.Context[versionPinKey].(string)

	return pin
}
