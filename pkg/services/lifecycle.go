package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/validation"
)

const initialDraftVersion = "0.1.0"

// Lifecycle moves models through their statuses: drafts are editable,
// publishing freezes them on a new minor version, archiving retires them,
// and soft deletion hands them to the recovery window.
type Lifecycle struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validator   *validation.ConnectionValidator
	logger      *slog.Logger
}

// NewLifecycle creates a model lifecycle service.
func NewLifecycle(persistence persistence.Persistence, eventBus eventbus.EventBus, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		persistence: persistence,
		eventBus:    eventBus,
		validator:   validation.NewConnectionValidator(),
		logger:      logger.With("module", "lifecycle"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (l *Lifecycle) HealthCheck(ctx context.Context) (string, bool) {
	if l.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := l.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create adds a new draft model to the repository.
func (l *Lifecycle) Create(ctx context.Context, model *models.Model) (*models.Model, error) {
	if model == nil {
		return nil, ErrModelNil
	}

	if strings.TrimSpace(model.Name) == "" {
		return nil, ErrModelNameRequired
	}

	now := time.Now().UTC()

	if model.ID == "" {
		model.ID = uuid.New().String()
	}

	model.CreatedAt = now
	model.UpdatedAt = now

	if model.Status == "" {
		model.Status = models.ModelStatusDraft
	}

	if model.Version == "" {
		model.Version = initialDraftVersion
	}

	if model.Nodes == nil {
		model.Nodes = make(map[string]*models.Node)
	}

	if model.ActionNodes == nil {
		model.ActionNodes = make(map[string]*models.ActionNode)
	}

	err := l.persistence.ModelRepository().Save(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	return model, nil
}

// FetchByID retrieves a live model by its ID.
func (l *Lifecycle) FetchByID(ctx context.Context, id string) (*models.Model, error) {
	model, err := l.persistence.ModelRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	return model, nil
}

// List returns all live models.
func (l *Lifecycle) List(ctx context.Context) ([]*models.Model, error) {
	return l.persistence.ModelRepository().List(ctx)
}

// Update replaces the content of a draft model. Status and timestamps are
// carried from the stored model; status changes go through Publish and
// Archive instead.
func (l *Lifecycle) Update(ctx context.Context, modelID string, model *models.Model) (*models.Model, error) {
	if model == nil {
		return nil, ErrModelNil
	}

	existing, err := l.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return nil, ErrModelNotFound
	}

	switch existing.Status {
	case models.ModelStatusPublished:
		return nil, ErrCannotModifyPublished
	case models.ModelStatusArchived:
		return nil, ErrCannotModifyArchived
	case models.ModelStatusDraft:
	}

	model.ID = modelID
	model.Status = existing.Status
	model.Owner = existing.Owner
	model.CreatedAt = existing.CreatedAt
	model.UpdatedAt = time.Now().UTC()

	err = l.persistence.ModelRepository().Save(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to update model: %w", err)
	}

	return model, nil
}

// Publish freezes a draft model as the active version. The model must pass
// structural validation, and its minor version is bumped so the published
// artifact is distinguishable from the draft it came from.
func (l *Lifecycle) Publish(ctx context.Context, modelID, actor string) (*models.Model, error) {
	if actor == "" {
		return nil, ErrEmptyActor
	}

	model, err := l.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	if model.Status != models.ModelStatusDraft {
		return nil, ErrNotDraft
	}

	err = l.validateForPublishing(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("model validation failed: %w", err)
	}

	previous := model.Version

	next, err := models.BumpMinor(model.Version)
	if err != nil {
		return nil, fmt.Errorf("cannot bump version of model %s: %w", modelID, err)
	}

	model.Version = next
	model.Status = models.ModelStatusPublished
	model.UpdatedAt = time.Now().UTC()

	err = l.persistence.ModelRepository().Save(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to publish model: %w", err)
	}

	l.audit(ctx, models.AuditModelPublished, modelID, actor, map[string]any{
		"version":          model.Version,
		"previous_version": previous,
	})

	l.publish(ctx, modelID, events.ModelPublished{
		BaseEvent:       events.NewBaseEvent(events.ModelPublishedEvent, modelID),
		ModelID:         modelID,
		Version:         model.Version,
		PreviousVersion: previous,
		PublishedBy:     actor,
	})

	l.logger.InfoContext(ctx, "Model published",
		"model_id", modelID, "version", model.Version, "published_by", actor)

	return model, nil
}

// Archive retires a published model. Archived models stay readable but can
// no longer be executed or modified.
func (l *Lifecycle) Archive(ctx context.Context, modelID, actor string) (*models.Model, error) {
	if actor == "" {
		return nil, ErrEmptyActor
	}

	model, err := l.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return nil, ErrModelNotFound
	}

	if model.Status != models.ModelStatusPublished {
		return nil, ErrNotPublished
	}

	model.Status = models.ModelStatusArchived
	model.UpdatedAt = time.Now().UTC()

	err = l.persistence.ModelRepository().Save(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to archive model: %w", err)
	}

	l.audit(ctx, models.AuditModelArchived, modelID, actor, map[string]any{
		"version": model.Version,
	})

	l.publish(ctx, modelID, events.ModelArchived{
		BaseEvent:  events.NewBaseEvent(events.ModelArchivedEvent, modelID),
		ModelID:    modelID,
		Version:    model.Version,
		ArchivedBy: actor,
	})

	l.logger.InfoContext(ctx, "Model archived",
		"model_id", modelID, "version", model.Version, "archived_by", actor)

	return model, nil
}

// SoftDelete marks a model deleted without discarding its data, opening the
// recovery window for it.
func (l *Lifecycle) SoftDelete(ctx context.Context, modelID, actor string) error {
	if actor == "" {
		return ErrEmptyActor
	}

	model, err := l.persistence.ModelRepository().GetByID(ctx, modelID)
	if err != nil {
		return fmt.Errorf("failed to get model: %w", err)
	}

	if model == nil {
		return ErrModelNotFound
	}

	model.SoftDelete(actor)

	err = l.persistence.ModelRepository().Save(ctx, model)
	if err != nil {
		return fmt.Errorf("failed to soft-delete model: %w", err)
	}

	l.audit(ctx, models.AuditModelSoftDeleted, modelID, actor, map[string]any{
		"version": model.Version,
	})

	l.publish(ctx, modelID, events.ModelSoftDeleted{
		BaseEvent: events.NewBaseEvent(events.ModelSoftDeletedEvent, modelID),
		ModelID:   modelID,
		DeletedBy: actor,
	})

	l.logger.InfoContext(ctx, "Model soft-deleted", "model_id", modelID, "deleted_by", actor)

	return nil
}

// validateForPublishing ensures a model is ready to be published. Editing
// tolerates partial graphs; publishing does not.
func (l *Lifecycle) validateForPublishing(ctx context.Context, model *models.Model) error {
	if strings.TrimSpace(model.Name) == "" {
		return ErrModelNameRequired
	}

	if len(model.Nodes) == 0 {
		return ErrNodesRequired
	}

	var hasInput, hasOutput bool

	for _, node := range model.Nodes {
		switch node.Type {
		case models.NodeTypeBoundaryInput:
			hasInput = true
		case models.NodeTypeBoundaryOutput:
			hasOutput = true
		}
	}

	if !hasInput || !hasOutput {
		return ErrBoundaryNodesRequired
	}

	links, err := l.persistence.LinkRepository().ListByEntity(ctx, model.ID)
	if err != nil {
		return fmt.Errorf("failed to load model links: %w", err)
	}

	result := l.validator.ValidateWorkflowStructure(model.Nodes, model.ActionNodes, links)
	if result.HasErrors() {
		return fmt.Errorf("structural validation found %d errors: %s",
			len(result.Errors), strings.Join(result.Errors, "; "))
	}

	if result.HasWarnings() {
		l.logger.WarnContext(ctx, "Publishing model with structural warnings",
			"model_id", model.ID, "warnings", result.Warnings)
	}

	return nil
}

func (l *Lifecycle) audit(ctx context.Context, action, entityID, actor string, details map[string]any) {
	entry := &models.AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		EntityID:  entityID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}

	err := l.persistence.AuditLogRepository().Save(ctx, entry)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to write audit entry", "action", action, "entity_id", entityID, "error", err)
	}
}

func (l *Lifecycle) publish(ctx context.Context, key string, event eventbus.Event) {
	err := l.eventBus.Publish(ctx, key, event)
	if err != nil {
		l.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
	}
}
