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

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
)

// AuditLogRepository handles append-only audit history on the file system.
type AuditLogRepository struct {
	root string // File system root for storing audit entries
}

// NewAuditLogRepository creates a new audit log repository.
func NewAuditLogRepository(root string) *AuditLogRepository {
	return &AuditLogRepository{root: root}
}

// Save appends an audit entry. A missing ID or timestamp is filled in.
func (alr *AuditLogRepository) Save(_ context.Context, entry *models.AuditEntry) error {
	err := os.MkdirAll(alr.root+"/audit", 0750)
	if err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry %s: %w", entry.ID, err)
	}

	filePath := path.Join(alr.root+"/audit", entry.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// ListByEntity returns entries recorded against the given entity, newest first.
func (alr *AuditLogRepository) ListByEntity(ctx context.Context, entityID string) ([]*models.AuditEntry, error) {
	all, err := alr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.AuditEntry, 0)

	for _, entry := range all {
		if entry.EntityID == entityID {
			matched = append(matched, entry)
		}
	}

	return matched, nil
}

// ListByAction returns entries for the given action, newest first.
func (alr *AuditLogRepository) ListByAction(ctx context.Context, action string) ([]*models.AuditEntry, error) {
	all, err := alr.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.AuditEntry, 0)

	for _, entry := range all {
		if entry.Action == action {
			matched = append(matched, entry)
		}
	}

	return matched, nil
}

// loadAll reads every audit entry sorted newest first.
func (alr *AuditLogRepository) loadAll(_ context.Context) ([]*models.AuditEntry, error) {
	root := os.DirFS(alr.root + "/audit")

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list audit files: %w", err)
	}

	all := make([]*models.AuditEntry, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		filePath := filepath.Clean(path.Join(alr.root, "audit", file))

		body, err := os.ReadFile(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("failed to fetch audit entry %s: %w", file, err)
		}

		var entry models.AuditEntry

		err = json.Unmarshal(body, &entry)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry %s: %w", file, err)
		}

		all = append(all, &entry)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].ID > all[j].ID
		}

		return all[i].Timestamp.After(all[j].Timestamp)
	})

	return all, nil
}
