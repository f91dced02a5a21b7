// Package recovery manages the lifecycle of soft-deleted workflow models:
// eligibility assessment, coordinated restoration, cascading and partial
// recovery, and retention sweeping.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/protocol"
)

const defaultRecoveryWindow = 90 * 24 * time.Hour

// Roles that may request recovery of a model they do not own.
const (
	roleAdmin = "admin"
	roleOwner = "owner"
)

// Manager coordinates recovery of soft-deleted models. Dependency and
// version verdicts come from collaborator services; the manager never
// implements their internals.
type Manager struct {
	persistence  persistence.Persistence
	eventBus     eventbus.EventBus
	dependencies protocol.DependencyService
	versions     protocol.VersionService
	window       time.Duration
	tracer       trace.Tracer
	logger       *slog.Logger
}

func NewManager(
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	dependencies protocol.DependencyService,
	versions protocol.VersionService,
	window time.Duration,
	logger *slog.Logger,
) *Manager {
	if window <= 0 {
		window = defaultRecoveryWindow
	}

	return &Manager{
		persistence:  persistence,
		eventBus:     eventBus,
		dependencies: dependencies,
		versions:     versions,
		window:       window,
		tracer:       otel.Tracer("loom-recovery"),
		logger:       logger.With("module", "recovery"),
	}
}

// Assessment is the outcome of an eligibility check. Escalation is set only
// for EXPIRED classifications, RepairPlan and Conflicts only for
// REQUIRES_REPAIR.
type Assessment struct {
	ModelID     string                     `json:"model_id"`
	Requestor   string                     `json:"requestor"`
	Eligibility models.RecoveryEligibility `json:"eligibility"`
	Reasons     []string                   `json:"reasons,omitempty"`
	Escalation  *models.EscalationPath     `json:"escalation,omitempty"`
	RepairPlan  *models.RepairPlan         `json:"repair_plan,omitempty"`
	Conflicts   []models.VersionConflict   `json:"conflicts,omitempty"`
	DeletedAt   *time.Time                 `json:"deleted_at,omitempty"`
	AssessedAt  time.Time                  `json:"assessed_at"`
}

// AssessRecoveryEligibility classifies whether the requestor can restore the
// soft-deleted model. The window and permission checks run first and
// short-circuit; dependency and version services are only consulted for
// requests that could proceed.
func (m *Manager) AssessRecoveryEligibility(ctx context.Context, modelID, requestor string) (*Assessment, error) {
	tombstone, err := m.persistence.ModelRepository().GetDeleted(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deleted model %s: %w", modelID, err)
	}

	if tombstone == nil {
		return nil, fmt.Errorf("no deleted model %s found", modelID)
	}

	assessment := &Assessment{
		ModelID:    modelID,
		Requestor:  requestor,
		DeletedAt:  tombstone.DeletedAt,
		AssessedAt: time.Now().UTC(),
	}

	if tombstone.DeletedAt != nil {
		elapsed := time.Since(*tombstone.DeletedAt)
		if elapsed > m.window {
			assessment.Eligibility = models.RecoveryExpired
			assessment.Reasons = append(assessment.Reasons, fmt.Sprintf(
				"deleted %d days ago, past the %d-day recovery window",
				int(elapsed.Hours()/24), int(m.window.Hours()/24)))
			assessment.Escalation = &models.EscalationPath{
				RequiredRole:          roleAdmin,
				RequiresJustification: true,
				Description:           "an administrator may override the retention window with a documented justification",
			}

			m.auditAssessment(ctx, assessment)

			return assessment, nil
		}
	}

	if !canRecover(tombstone, requestor) {
		assessment.Eligibility = models.RecoveryPermissionDenied
		assessment.Reasons = append(assessment.Reasons,
			fmt.Sprintf("requestor %s holds neither admin nor owner permission", requestor))

		m.auditAssessment(ctx, assessment)

		return assessment, nil
	}

	integrity, err := m.dependencies.ValidateDependencyIntegrity(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("dependency integrity check failed: %w", err)
	}

	compatibility, err := m.versions.ValidateVersionCompatibility(ctx, tombstone)
	if err != nil {
		return nil, fmt.Errorf("version compatibility check failed: %w", err)
	}

	if !integrity.Intact || !compatibility.Compatible {
		assessment.Eligibility = models.RecoveryRequiresRepair
		assessment.RepairPlan = buildRepairPlan(integrity)
		assessment.Conflicts = compatibility.Conflicts

		if !integrity.Intact {
			assessment.Reasons = append(assessment.Reasons, fmt.Sprintf(
				"%d broken references, %d missing dependencies",
				len(integrity.BrokenReferences), len(integrity.MissingDependencies)))
		}

		if !compatibility.Compatible {
			assessment.Reasons = append(assessment.Reasons,
				fmt.Sprintf("%d dependents pin incompatible versions", len(compatibility.Conflicts)))
		}

		m.auditAssessment(ctx, assessment)

		return assessment, nil
	}

	assessment.Eligibility = models.RecoveryEligible
	m.auditAssessment(ctx, assessment)

	return assessment, nil
}

func canRecover(model *models.Model, requestor string) bool {
	if requestor == "" {
		return false
	}

	if model.Owner == requestor {
		return true
	}

	role, ok := model.Role(requestor)
	if !ok {
		return false
	}

	return role == roleAdmin || role == roleOwner
}

// buildRepairPlan orders restore-dependency actions before relinks, since a
// relink against a still-missing target cannot succeed.
func buildRepairPlan(report *models.IntegrityReport) *models.RepairPlan {
	if report == nil || report.Intact {
		return nil
	}

	plan := &models.RepairPlan{}

	for _, id := range report.MissingDependencies {
		plan.Actions = append(plan.Actions, models.RepairAction{
			Target:     id,
			Action:     models.RepairRestoreDependency,
			Complexity: models.RepairComplexityHigh,
			Detail:     "restore missing dependency",
		})
	}

	for _, id := range report.BrokenReferences {
		plan.Actions = append(plan.Actions, models.RepairAction{
			Target:     id,
			Action:     models.RepairRelink,
			Complexity: models.RepairComplexityMedium,
			Detail:     "relink broken reference",
		})
	}

	return plan
}

func (m *Manager) auditAssessment(ctx context.Context, assessment *Assessment) {
	m.audit(ctx, models.AuditRecoveryAssessed, assessment.ModelID, assessment.Requestor, map[string]any{
		"eligibility": string(assessment.Eligibility),
		"reasons":     assessment.Reasons,
	})
}

// audit appends an audit entry, logging instead of failing the caller.
func (m *Manager) audit(ctx context.Context, action, entityID, actor string, details map[string]any) {
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}

	err := m.persistence.AuditLogRepository().Save(ctx, entry)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to write audit entry", "action", action, "entity_id", entityID, "error", err)
	}
}

// publish sends an event, logging instead of failing the caller.
func (m *Manager) publish(ctx context.Context, key string, event eventbus.Event) {
	err := m.eventBus.Publish(ctx, key, event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}
