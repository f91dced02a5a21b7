package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/loomhq/loom/pkg/models"
)

// ModelRepository handles model-related file operations. Soft-deleted models
// keep their JSON file; the tombstone state lives inside the document.
type ModelRepository struct {
	root string // File system root for storing models
}

// NewModelRepository creates a new model repository.
func NewModelRepository(root string) *ModelRepository {
	return &ModelRepository{root: root}
}

// Save saves a model to the file system.
func (mr *ModelRepository) Save(_ context.Context, model *models.Model) error {
	err := os.MkdirAll(mr.root+"/models", 0750)
	if err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	now := time.Now().UTC()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}

	model.UpdatedAt = now

	data, err := json.MarshalIndent(model, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model %s: %w", model.ID, err)
	}

	filePath := path.Join(mr.root+"/models", model.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// GetByID retrieves a live model by its ID. Soft-deleted and missing models
// both come back as nil without an error.
func (mr *ModelRepository) GetByID(ctx context.Context, id string) (*models.Model, error) {
	model, err := mr.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if model == nil || model.Deleted {
		return nil, nil
	}

	return model, nil
}

// GetDeleted retrieves a soft-deleted model by its ID, or nil when no such
// tombstone exists.
func (mr *ModelRepository) GetDeleted(ctx context.Context, id string) (*models.Model, error) {
	model, err := mr.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if model == nil || !model.Deleted {
		return nil, nil
	}

	return model, nil
}

// List returns all live models sorted by creation time.
func (mr *ModelRepository) List(ctx context.Context) ([]*models.Model, error) {
	all, err := mr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	live := make([]*models.Model, 0, len(all))

	for _, model := range all {
		if !model.Deleted {
			live = append(live, model)
		}
	}

	return live, nil
}

// ListDeletedBefore returns soft-deleted models whose deletion timestamp is
// strictly before the cutoff.
func (mr *ModelRepository) ListDeletedBefore(ctx context.Context, cutoff time.Time) ([]*models.Model, error) {
	all, err := mr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	expired := make([]*models.Model, 0)

	for _, model := range all {
		if model.Deleted && model.DeletedAt != nil && model.DeletedAt.Before(cutoff) {
			expired = append(expired, model)
		}
	}

	return expired, nil
}

// Delete removes a model file permanently, soft-deleted or not.
func (mr *ModelRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(mr.root+"/models", id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete model %s: %w", id, err)
	}

	return nil
}

// Exists reports whether a live model with the given ID is present.
func (mr *ModelRepository) Exists(ctx context.Context, id string) (bool, error) {
	model, err := mr.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	return model != nil, nil
}

// load reads a model file regardless of its tombstone state.
func (mr *ModelRepository) load(_ context.Context, id string) (*models.Model, error) {
	filePath := filepath.Clean(path.Join(mr.root, "models", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch model %s: %w", id, err)
	}

	var model models.Model

	err = json.Unmarshal(body, &model)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal model %s: %w", id, err)
	}

	return &model, nil
}

// loadAll reads every model file, tombstones included, sorted by creation time.
func (mr *ModelRepository) loadAll(ctx context.Context) ([]*models.Model, error) {
	root := os.DirFS(mr.root + "/models")

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list model files: %w", err)
	}

	all := make([]*models.Model, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		modelID := file[:len(file)-5] // Remove .json extension

		model, err := mr.load(ctx, modelID)
		if err != nil {
			return nil, fmt.Errorf("failed to load model %s: %w", modelID, err)
		}

		if model != nil {
			all = append(all, model)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}

		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	return all, nil
}
