package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

// ModelRepository handles model-related database operations.
type ModelRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewModelRepository creates a new model repository.
func NewModelRepository(db *sql.DB, logger *slog.Logger) *ModelRepository {
	return &ModelRepository{db: db, logger: logger}
}

const modelColumns = `
			id
		  , name
		  , description
		  , status
		  , version
		  , nodes
		  , action_nodes
		  , metadata
		  , permissions
		  , owner
		  , created_at
		  , updated_at
		  , deleted
		  , deleted_at
		  , deleted_by
`

// Save creates or replaces a model, tombstone state included.
func (r *ModelRepository) Save(ctx context.Context, model *models.Model) error {
	now := time.Now().UTC()

	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}

	model.UpdatedAt = now

	// Convert complex fields to JSON
	nodesJSON, err := json.Marshal(model.Nodes)
	if err != nil {
		return fmt.Errorf("failed to marshal nodes: %w", err)
	}

	actionNodesJSON, err := json.Marshal(model.ActionNodes)
	if err != nil {
		return fmt.Errorf("failed to marshal action nodes: %w", err)
	}

	metadataJSON, err := json.Marshal(model.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	permissionsJSON, err := json.Marshal(model.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	query := `
		INSERT INTO models (id, name, description, status, version,
nodes, action_nodes, metadata, permissions, owner, created_at, updated_at, deleted, deleted_at, deleted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			nodes = EXCLUDED.nodes,
			action_nodes = EXCLUDED.action_nodes,
			metadata = EXCLUDED.metadata,
			permissions = EXCLUDED.permissions,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			deleted_at = EXCLUDED.deleted_at,
			deleted_by = EXCLUDED.deleted_by
	`

	_, err = r.db.ExecContext(ctx, query,
		model.ID,
		model.Name,
		model.Description,
		model.Status,
		model.Version,
		nodesJSON,
		actionNodesJSON,
		metadataJSON,
		permissionsJSON,
		model.Owner,
		model.CreatedAt,
		model.UpdatedAt,
		model.Deleted,
		model.DeletedAt,
		model.DeletedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	return nil
}

// GetByID returns the live model with the given ID, or nil when it does not
// exist or is soft-deleted.
func (r *ModelRepository) GetByID(ctx context.Context, id string) (*models.Model, error) {
	query := `
		SELECT` + modelColumns + `
		FROM models
		WHERE id = $1 AND deleted = FALSE
	`

	row := r.db.QueryRowContext(ctx, query, id)

	model, err := r.scanModelBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan model: %w", err)
	}

	return model, nil
}

// GetDeleted returns the soft-deleted model with the given ID, or nil when no
// such tombstone exists.
func (r *ModelRepository) GetDeleted(ctx context.Context, id string) (*models.Model, error) {
	query := `
		SELECT` + modelColumns + `
		FROM models
		WHERE id = $1 AND deleted = TRUE
	`

	row := r.db.QueryRowContext(ctx, query, id)

	model, err := r.scanModelBase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan deleted model: %w", err)
	}

	return model, nil
}

// List returns all live models ordered by creation time.
func (r *ModelRepository) List(ctx context.Context) ([]*models.Model, error) {
	query := `
		SELECT` + modelColumns + `
		FROM models
		WHERE deleted = FALSE
		ORDER BY created_at
	`

	return r.queryModels(ctx, query)
}

// ListDeletedBefore returns soft-deleted models whose deletion timestamp is
// strictly before the cutoff.
func (r *ModelRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Model, error) {
	query := `
		SELECT` + modelColumns + `
		FROM models
		WHERE deleted = TRUE AND deleted_at < $1
		ORDER BY deleted_at
	`

	return r.queryModels(ctx, query, cutoff)
}

// Delete removes a model permanently, soft-deleted or not.
func (r *ModelRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM models WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Model doesn't exist - this is not an error
		return nil
	}

	return nil
}

// Exists reports whether a live model with the given ID is present.
func (r *ModelRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	query := "SELECT EXISTS(SELECT 1 FROM models WHERE id = $1 AND deleted = FALSE)"

	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check model existence: %w", err)
	}

	return exists, nil
}

func (r *ModelRepository) queryModels(ctx context.Context, query string, args ...any) ([]*models.Model, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}

	defer func(ctx context.Context, r *ModelRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	result := make([]*models.Model, 0)

	for rows.Next() {
		model, err := r.scanModelBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}

		result = append(result, model)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating models: %w", err)
	}

	return result, nil
}

func (r *ModelRepository) scanModelBase(scanner interface {
	Scan(dest ...any) error
}) (*models.Model, error) {
	var (
		model                                               models.Model
		nodesJSON, actionNodesJSON, metadataJSON, permsJSON []byte
	)

	err := scanner.Scan(
		&model.ID,
		&model.Name,
		&model.Description,
		&model.Status,
		&model.Version,
		&nodesJSON,
		&actionNodesJSON,
		&metadataJSON,
		&permsJSON,
		&model.Owner,
		&model.CreatedAt,
		&model.UpdatedAt,
		&model.Deleted,
		&model.DeletedAt,
		&model.DeletedBy,
	)
	if err != nil {
		return nil, err
	}

	// Unmarshal JSON fields
	if nodesJSON != nil {
		err := json.Unmarshal(nodesJSON, &model.Nodes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal nodes: %w", err)
		}
	}

	if actionNodesJSON != nil {
		err := json.Unmarshal(actionNodesJSON, &model.ActionNodes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal action nodes: %w", err)
		}
	}

	if metadataJSON != nil {
		err := json.Unmarshal(metadataJSON, &model.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if permsJSON != nil {
		err := json.Unmarshal(permsJSON, &model.Permissions)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	return &model, nil
}
