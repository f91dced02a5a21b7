// Package postgresql provides PostgreSQL persistence implementation for models, agents, links and audit history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db        *sql.DB
	logger    *slog.Logger
	modelRepo *ModelRepository
	agentRepo *AgentRepository
	linkRepo  *LinkRepository
	auditRepo *AuditLogRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize components
	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:        database,
		logger:    logger,
		modelRepo: NewModelRepository(database, logger),
		agentRepo: NewAgentRepository(database, logger),
		linkRepo:  NewLinkRepository(database, logger),
		auditRepo: NewAuditLogRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// ModelRepository returns the model repository backed by PostgreSQL.
func (p *Persistence) ModelRepository() persistence.ModelRepository {
	return p.modelRepo
}

// AgentRepository returns the agent repository backed by PostgreSQL.
func (p *Persistence) AgentRepository() persistence.AgentRepository {
	return p.agentRepo
}

// LinkRepository returns the link repository backed by PostgreSQL.
func (p *Persistence) LinkRepository() persistence.LinkRepository {
	return p.linkRepo
}

// AuditLogRepository returns the audit log repository backed by PostgreSQL.
func (p *Persistence) AuditLogRepository() persistence.AuditLogRepository {
	return p.auditRepo
}
