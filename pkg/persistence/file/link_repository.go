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

	"github.com/loomhq/loom/pkg/models"
)

// LinkRepository handles node link file operations.
type LinkRepository struct {
	root string // File system root for storing links
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(root string) *LinkRepository {
	return &LinkRepository{root: root}
}

// Save saves a link to the file system.
func (lr *LinkRepository) Save(_ context.Context, link *models.NodeLink) error {
	err := os.MkdirAll(lr.root+"/links", 0750)
	if err != nil {
		return fmt.Errorf("failed to create links directory: %w", err)
	}

	data, err := json.MarshalIndent(link, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal link %s: %w", link.ID, err)
	}

	filePath := path.Join(lr.root+"/links", link.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// GetByID retrieves a link by its ID from the file system.
func (lr *LinkRepository) GetByID(_ context.Context, id string) (*models.NodeLink, error) {
	filePath := filepath.Clean(path.Join(lr.root, "links", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch link %s: %w", id, err)
	}

	var link models.NodeLink

	err = json.Unmarshal(body, &link)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal link %s: %w", id, err)
	}

	return &link, nil
}

// List returns all links sorted by creation time.
func (lr *LinkRepository) List(ctx context.Context) ([]*models.NodeLink, error) {
	root := os.DirFS(lr.root + "/links")

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list link files: %w", err)
	}

	links := make([]*models.NodeLink, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		linkID := file[:len(file)-5] // Remove .json extension

		link, err := lr.GetByID(ctx, linkID)
		if err != nil {
			return nil, fmt.Errorf("failed to load link %s: %w", linkID, err)
		}

		if link != nil {
			links = append(links, link)
		}
	}

	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID < links[j].ID
		}

		return links[i].CreatedAt.Before(links[j].CreatedAt)
	})

	return links, nil
}

// ListByEntity returns links where the entity is source or target.
func (lr *LinkRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.NodeLink, error) {
	all, err := lr.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.NodeLink, 0)

	for _, link := range all {
		if link.SourceEntityID == entityID || link.TargetEntityID == entityID {
			matched = append(matched, link)
		}
	}

	return matched, nil
}

// ListByType returns links of the given type.
func (lr *LinkRepository) ListByType(ctx context.Context, linkType models.LinkType) ([]*models.NodeLink, error) {
	all, err := lr.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.NodeLink, 0)

	for _, link := range all {
		if link.Type == linkType {
			matched = append(matched, link)
		}
	}

	return matched, nil
}

// ListStrong returns links at or above the strong-link threshold.
func (lr *LinkRepository) ListStrong(ctx context.Context) ([]*models.NodeLink, error) {
	all, err := lr.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.NodeLink, 0)

	for _, link := range all {
		if link.IsStrong() {
			matched = append(matched, link)
		}
	}

	return matched, nil
}

// Delete removes a link by its ID.
func (lr *LinkRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(lr.root+"/links", id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete link %s: %w", id, err)
	}

	return nil
}
