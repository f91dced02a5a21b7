package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
)

// AuditLogRepository handles append-only audit history in PostgreSQL.
type AuditLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditLogRepository creates a new audit log repository.
func NewAuditLogRepository(db *sql.DB, logger *slog.Logger) *AuditLogRepository {
	return &AuditLogRepository{db: db, logger: logger}
}

// Save appends an audit entry. A missing ID or timestamp is filled in.
func (r *AuditLogRepository) Save(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate audit entry ID: %w", err)
		}

		entry.ID = id.String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, action, entity_id, actor, occurred_at, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Action,
		entry.EntityID,
		entry.Actor,
		entry.Timestamp,
		detailsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save audit entry: %w", err)
	}

	return nil
}

// ListByEntity returns entries recorded against the given entity, newest first.
func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, action, entity_id, actor, occurred_at, details
		FROM audit_log
		WHERE entity_id = $1
		ORDER BY occurred_at DESC
	`

	return r.queryEntries(ctx, query, entityID)
}

// ListByAction returns entries for the given action, newest first.
func (r *AuditLogRepository) ListByAction(ctx context.Context, action string) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, action, entity_id, actor, occurred_at, details
		FROM audit_log
		WHERE action = $1
		ORDER BY occurred_at DESC
	`

	return r.queryEntries(ctx, query, action)
}

func (r *AuditLogRepository) queryEntries(ctx context.Context, query string, args ...any) ([]*models.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.AuditEntry, 0)

	for rows.Next() {
		var (
			entry       models.AuditEntry
			detailsJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&entry.EntityID,
			&entry.Actor,
			&entry.Timestamp,
			&detailsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if detailsJSON != nil {
			err := json.Unmarshal(detailsJSON, &entry.Details)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit details: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}
