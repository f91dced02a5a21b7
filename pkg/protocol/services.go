package protocol

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
)

// DependencyService inspects and repairs a model's reference graph. The
// recovery manager consumes its verdicts; it never implements them.
type DependencyService interface {
	ValidateDependencyIntegrity(ctx context.Context, modelID string) (*models.IntegrityReport, error)

	// RepairBrokenReferences executes the plan and returns the identifiers of
	// the references it repaired or removed.
	RepairBrokenReferences(ctx context.Context, modelID string, plan *models.RepairPlan) ([]string, error)
}

// VersionService answers whether restoring a model is compatible with its
// dependents and resolves conflicts when asked.
type VersionService interface {
	ValidateVersionCompatibility(ctx context.Context, model *models.Model) (*models.CompatibilityReport, error)
	ResolveVersionDependencies(ctx context.Context, modelID string, conflicts []models.VersionConflict) error
}
