package recovery

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/otelhelper"
)

// Component names accepted by selective recovery.
const (
	ComponentMetadata    = "metadata"
	ComponentPermissions = "permissions"
	ComponentNodes       = "nodes"
	ComponentLinks       = "links"
)

// componentOrder fixes the canonical ordering of recovered/preserved lists.
var componentOrder = []string{ComponentMetadata, ComponentPermissions, ComponentNodes, ComponentLinks}

// RecoveryOptions steers one coordinated restoration.
type RecoveryOptions struct {
	// Actor performs the recovery and is recorded in audit and events.
	Actor string

	// NewVersion bumps the patch version so the restored model is
	// distinguishable from the one that was deleted.
	NewVersion bool

	// RepairReferences runs the repair plan before the model goes live and
	// verifies integrity afterwards. With a nil plan a fresh one is derived
	// from the dependency service.
	RepairReferences bool
	RepairPlan       *models.RepairPlan

	// ResolveConflicts asks the version service to settle dependent version
	// pins that are incompatible with the restored model.
	ResolveConflicts bool

	// Components limits the recovery to the named components; empty means a
	// full recovery. Components not named keep their in-place state and are
	// reported as preserved.
	Components []string
}

// RecoveryResult reports what one coordinated restoration did.
type RecoveryResult struct {
	ModelID            string    `json:"model_id"`
	Version            string    `json:"version"`
	PreviousVersion    string    `json:"previous_version,omitempty"`
	RepairedReferences []string  `json:"repaired_references,omitempty"`
	ResolvedConflicts  int       `json:"resolved_conflicts,omitempty"`
	Recovered          []string  `json:"recovered"`
	Preserved          []string  `json:"preserved,omitempty"`
	RestoredAt         time.Time `json:"restored_at"`
}

// CoordinateModelRecovery restores a soft-deleted model in one coordination.
// Every collaborator step works against a private clone and the store is
// written exactly once, after all of them succeeded, so a failure at any
// step leaves the deleted state untouched. Eligibility is not re-checked
// here: assessment is the gate, and calling this directly for an expired
// model is the administrative escalation path.
func (m *Manager) CoordinateModelRecovery(ctx context.Context, modelID string, opts RecoveryOptions) (*RecoveryResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "recovery.coordinate",
		attribute.String(otelhelper.ModelIDKey, modelID))
	defer span.End()

	tombstone, err := m.persistence.ModelRepository().GetDeleted(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deleted model %s: %w", modelID, err)
	}

	if tombstone == nil {
		return nil, fmt.Errorf("no deleted model %s found", modelID)
	}

	recovered, preserved, err := splitComponents(opts.Components)
	if err != nil {
		return nil, err
	}

	clone := tombstone.Clone()
	clone.Undelete()

	result := &RecoveryResult{
		ModelID:         modelID,
		PreviousVersion: tombstone.Version,
		Recovered:       recovered,
		Preserved:       preserved,
	}

	if opts.NewVersion {
		next, err := models.BumpPatch(clone.Version)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("cannot bump version of model %s: %w", modelID, err)
		}

		clone.Version = next
	}

	if opts.RepairReferences {
		repaired, err := m.repairReferences(ctx, modelID, opts.RepairPlan)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		result.RepairedReferences = repaired
	}

	if opts.ResolveConflicts {
		resolved, err := m.resolveConflicts(ctx, modelID, clone)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		result.ResolvedConflicts = resolved
	}

	if slices.Contains(recovered, ComponentLinks) {
		links, err := m.persistence.LinkRepository().ListByEntity(ctx, modelID)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("cannot confirm links of model %s: %w", modelID, err)
		}

		m.logger.DebugContext(ctx, "Confirmed model links", "model_id", modelID, "links", len(links))
	}

	result.Version = clone.Version

	err = m.persistence.ModelRepository().Save(ctx, clone)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to persist recovered model %s: %w", modelID, err)
	}

	result.RestoredAt = clone.UpdatedAt

	m.audit(ctx, models.AuditModelRecovered, modelID, opts.Actor, map[string]any{
		"version":             result.Version,
		"previous_version":    result.PreviousVersion,
		"recovered":           result.Recovered,
		"preserved":           result.Preserved,
		"repaired_references": len(result.RepairedReferences),
		"resolved_conflicts":  result.ResolvedConflicts,
	})

	// Undeleted first, restored second. Subscribers rely on this order.
	m.publish(ctx, modelID, events.ModelUndeleted{
		BaseEvent:  events.NewBaseEvent(events.ModelUndeletedEvent, modelID),
		ModelID:    modelID,
		RestoredBy: opts.Actor,
	})

	m.publish(ctx, modelID, events.ModelRestored{
		BaseEvent:          events.NewBaseEvent(events.ModelRestoredEvent, modelID),
		ModelID:            modelID,
		Version:            result.Version,
		RestoredBy:         opts.Actor,
		RepairedReferences: result.RepairedReferences,
		RestoredComponents: result.Recovered,
	})

	if len(result.RepairedReferences) > 0 {
		m.publish(ctx, modelID, events.RecoveryRepaired{
			BaseEvent: events.NewBaseEvent(events.RecoveryRepairedEvent, modelID),
			ModelID:   modelID,
			Repaired:  result.RepairedReferences,
		})
	}

	m.logger.InfoContext(ctx, "Model recovered",
		"model_id", modelID,
		"version", result.Version,
		"recovered", result.Recovered,
		"repaired_references", len(result.RepairedReferences))

	return result, nil
}

// RecoverComponents restores only the named components of a soft-deleted
// model, preserving the in-place state of the rest.
func (m *Manager) RecoverComponents(ctx context.Context, modelID string, components []string, opts RecoveryOptions) (*RecoveryResult, error) {
	opts.Components = components

	return m.CoordinateModelRecovery(ctx, modelID, opts)
}

func (m *Manager) repairReferences(ctx context.Context, modelID string, plan *models.RepairPlan) ([]string, error) {
	if plan.IsEmpty() {
		integrity, err := m.dependencies.ValidateDependencyIntegrity(ctx, modelID)
		if err != nil {
			return nil, fmt.Errorf("dependency integrity check failed: %w", err)
		}

		plan = buildRepairPlan(integrity)
	}

	if plan.IsEmpty() {
		return nil, nil
	}

	repaired, err := m.dependencies.RepairBrokenReferences(ctx, modelID, plan)
	if err != nil {
		return nil, fmt.Errorf("reference repair failed for model %s: %w", modelID, err)
	}

	integrity, err := m.dependencies.ValidateDependencyIntegrity(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("post-repair integrity check failed: %w", err)
	}

	if !integrity.Intact {
		return nil, fmt.Errorf("references of model %s remain broken after repair", modelID)
	}

	return repaired, nil
}

func (m *Manager) resolveConflicts(ctx context.Context, modelID string, model *models.Model) (int, error) {
	compatibility, err := m.versions.ValidateVersionCompatibility(ctx, model)
	if err != nil {
		return 0, fmt.Errorf("version compatibility check failed: %w", err)
	}

	if compatibility.Compatible {
		return 0, nil
	}

	err = m.versions.ResolveVersionDependencies(ctx, modelID, compatibility.Conflicts)
	if err != nil {
		return 0, fmt.Errorf("version conflict resolution failed for model %s: %w", modelID, err)
	}

	return len(compatibility.Conflicts), nil
}

// splitComponents normalizes the requested component list into canonical
// recovered and preserved sets. An empty request selects everything.
func splitComponents(requested []string) (recovered, preserved []string, err error) {
	if len(requested) == 0 {
		return slices.Clone(componentOrder), nil, nil
	}

	selected := make(map[string]bool, len(requested))

	for _, name := range requested {
		if !slices.Contains(componentOrder, name) {
			return nil, nil, fmt.Errorf("unknown recovery component %q", name)
		}

		selected[name] = true
	}

	for _, component := range componentOrder {
		if selected[component] {
			recovered = append(recovered, component)
		} else {
			preserved = append(preserved, component)
		}
	}

	return recovered, preserved, nil
}
