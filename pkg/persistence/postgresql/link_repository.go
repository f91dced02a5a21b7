package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
)

// LinkRepository handles node link database operations.
type LinkRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *sql.DB, logger *slog.Logger) *LinkRepository {
	return &LinkRepository{db: db, logger: logger}
}

const linkColumns = `
			id
		  , source_feature
		  , target_feature
		  , source_entity_id
		  , target_entity_id
		  , source_node_id
		  , target_node_id
		  , link_type
		  , strength
		  , context
		  , created_at
		  , updated_at
`

// Save creates or replaces a link.
func (r *LinkRepository) Save(ctx context.Context, link *models.NodeLink) error {
	now := time.Now().UTC()

	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}

	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = now
	}

	if link.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate link ID: %w", err)
		}

		link.ID = id.String()
	}

	contextJSON, err := json.Marshal(link.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal link context: %w", err)
	}

	query := `
		INSERT INTO node_links (id, source_feature, target_feature,
source_entity_id, target_entity_id, source_node_id, target_node_id, link_type, strength, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			source_feature = EXCLUDED.source_feature,
			target_feature = EXCLUDED.target_feature,
			source_entity_id = EXCLUDED.source_entity_id,
			target_entity_id = EXCLUDED.target_entity_id,
			source_node_id = EXCLUDED.source_node_id,
			target_node_id = EXCLUDED.target_node_id,
			link_type = EXCLUDED.link_type,
			strength = EXCLUDED.strength,
			context = EXCLUDED.context,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		link.ID,
		link.SourceFeature,
		link.TargetFeature,
		link.SourceEntityID,
		link.TargetEntityID,
		link.SourceNodeID,
		link.TargetNodeID,
		link.Type,
		link.Strength,
		contextJSON,
		link.CreatedAt,
		link.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save link: %w", err)
	}

	return nil
}

// GetByID returns the link with the given ID, or nil when missing.
func (r *LinkRepository) GetByID(ctx context.Context, id string) (*models.NodeLink, error) {
	query := `
		SELECT` + linkColumns + `
		FROM node_links
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	link, err := r.scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan link: %w", err)
	}

	return link, nil
}

// List returns all links ordered by creation time.
func (r *LinkRepository) List(ctx context.Context) ([]*models.NodeLink, error) {
	query := `
		SELECT` + linkColumns + `
		FROM node_links
		ORDER BY created_at
	`

	return r.queryLinks(ctx, query)
}

// ListByEntity returns links where the entity is source or target.
func (r *LinkRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.NodeLink, error) {
	query := `
		SELECT` + linkColumns + `
		FROM node_links
		WHERE source_entity_id = $1 OR target_entity_id = $1
		ORDER BY created_at
	`

	return r.queryLinks(ctx, query, entityID)
}

// ListByType returns links of the given type.
func (r *LinkRepository) ListByType(ctx context.Context, linkType models.LinkType) ([]*models.NodeLink, error) {
	query := `
		SELECT` + linkColumns + `
		FROM node_links
		WHERE link_type = $1
		ORDER BY created_at
	`

	return r.queryLinks(ctx, query, linkType)
}

// ListStrong returns links at or above the strong-link threshold.
func (r *LinkRepository) ListStrong(ctx context.Context) ([]*models.NodeLink, error) {
	query := `
		SELECT` + linkColumns + `
		FROM node_links
		WHERE strength >= $1
		ORDER BY created_at
	`

	return r.queryLinks(ctx, query, models.StrongLinkThreshold)
}

// Delete removes a link permanently.
func (r *LinkRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM node_links WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Link doesn't exist - this is not an error
		return nil
	}

	return nil
}

func (r *LinkRepository) queryLinks(ctx context.Context, query string, args ...any) ([]*models.NodeLink, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	links := make([]*models.NodeLink, 0)

	for rows.Next() {
		link, err := r.scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}

		links = append(links, link)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func (r *LinkRepository) scanLink(scanner interface {
	Scan(dest ...any) error
}) (*models.NodeLink, error) {
	var (
		link        models.NodeLink
		contextJSON []byte
	)

	err := scanner.Scan(
		&link.ID,
		&link.SourceFeature,
		&link.TargetFeature,
		&link.SourceEntityID,
		&link.TargetEntityID,
		&link.SourceNodeID,
		&link.TargetNodeID,
		&link.Type,
		&link.Strength,
		&contextJSON,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if contextJSON != nil {
		err := json.Unmarshal(contextJSON, &link.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal link context: %w", err)
		}
	}

	return &link, nil
}
