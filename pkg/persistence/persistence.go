// Package persistence provides data storage abstraction layer for models, agents, links and audit history.
package persistence

import (
	"context"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

// Persistence aggregates the repositories a storage backend must provide.
// Implementations share one underlying store (a database, a directory of
// JSON files) and hand out typed repositories over it.
type Persistence interface {
	ModelRepository() ModelRepository
	AgentRepository() AgentRepository
	LinkRepository() LinkRepository
	AuditLogRepository() AuditLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ModelRepository stores workflow models. Soft-deleted models stay in the
// store until retention removes them; read operations exclude them unless
// the method says otherwise.
type ModelRepository interface {
	// Save creates or replaces a model.
	Save(ctx context.Context, model *models.Model) error

	// GetByID returns the live model with the given ID, or nil when it does
	// not exist or is soft-deleted.
	GetByID(ctx context.Context, id string) (*models.Model, error)

	// GetDeleted returns the soft-deleted model with the given ID, or nil
	// when no such tombstone exists.
	GetDeleted(ctx context.Context, id string) (*models.Model, error)

	// List returns all live models.
	List(ctx context.Context) ([]*models.Model, error)

	// ListDeletedBefore returns soft-deleted models whose deletion timestamp
	// is strictly before the cutoff. Retention sweeps use this.
	ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Model, error)

	// Delete removes a model permanently, soft-deleted or not.
	Delete(ctx context.Context, id string) error

	// Exists reports whether a live model with the given ID is present.
	Exists(ctx context.Context, id string) (bool, error)
}

// AgentRepository stores registered worker agents.
type AgentRepository interface {
	// Save creates or replaces an agent.
	Save(ctx context.Context, agent *models.Agent) error

	// SaveAll persists a batch of agents. Implementations apply the batch
	// atomically where the backend allows it.
	SaveAll(ctx context.Context, agents []*models.Agent) error

	// GetByID returns the agent with the given ID, or nil when missing.
	GetByID(ctx context.Context, id string) (*models.Agent, error)

	// List returns every registered agent, enabled or not.
	List(ctx context.Context) ([]*models.Agent, error)

	// ListEnabled returns only agents currently eligible for work.
	ListEnabled(ctx context.Context) ([]*models.Agent, error)

	// FindByCapability returns enabled agents whose capability flag named by
	// capability is set.
	FindByCapability(ctx context.Context, capability string) ([]*models.Agent, error)

	// FindBySupportedDataType returns enabled agents declaring support for
	// the given data type.
	FindBySupportedDataType(ctx context.Context, dataType string) ([]*models.Agent, error)

	// SetEnabled flips the isolation state of an agent.
	SetEnabled(ctx context.Context, id string, enabled bool) error

	// RecordExecution folds one task outcome into the agent's stats.
	RecordExecution(ctx context.Context, id string, duration time.Duration, success bool) error

	// Delete removes an agent permanently.
	Delete(ctx context.Context, id string) error

	// DeleteAll removes every agent. Registration rollback uses this scoped
	// to the IDs it registered; the blanket form backs tests and resets.
	DeleteAll(ctx context.Context) error

	// Exists reports whether an agent with the given ID is present.
	Exists(ctx context.Context, id string) (bool, error)
}

// LinkRepository stores node links between entities.
type LinkRepository interface {
	// Save creates or replaces a link.
	Save(ctx context.Context, link *models.NodeLink) error

	// GetByID returns the link with the given ID, or nil when missing.
	GetByID(ctx context.Context, id string) (*models.NodeLink, error)

	// List returns all links.
	List(ctx context.Context) ([]*models.NodeLink, error)

	// ListByEntity returns links where the entity is source or target.
	ListByEntity(ctx context.Context, entityID string) ([]*models.NodeLink, error)

	// ListByType returns links of the given type.
	ListByType(ctx context.Context, linkType models.LinkType) ([]*models.NodeLink, error)

	// ListStrong returns links at or above the strong-link threshold.
	ListStrong(ctx context.Context) ([]*models.NodeLink, error)

	// Delete removes a link permanently.
	Delete(ctx context.Context, id string) error
}

// AuditLogRepository stores append-only audit history.
type AuditLogRepository interface {
	// Save appends an audit entry.
	Save(ctx context.Context, entry *models.AuditEntry) error

	// ListByEntity returns entries recorded against the given entity, newest
	// first.
	ListByEntity(ctx context.Context, entityID string) ([]*models.AuditEntry, error)

	// ListByAction returns entries for the given action, newest first.
	ListByAction(ctx context.Context, action string) ([]*models.AuditEntry, error)
}
