// Package file provides file-based persistence for models, agents, links and audit history.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/loomhq/loom/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Each entity is stored as a pretty-printed JSON file under a per-repository
// subdirectory of root.
type Persistence struct {
	root      string
	modelRepo *ModelRepository
	agentRepo *AgentRepository
	linkRepo  *LinkRepository
	auditRepo *AuditLogRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:      cleanRoot,
		modelRepo: NewModelRepository(cleanRoot),
		agentRepo: NewAgentRepository(cleanRoot),
		linkRepo:  NewLinkRepository(cleanRoot),
		auditRepo: NewAuditLogRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// ModelRepository returns the model repository implementation for file persistence.
func (fp *Persistence) ModelRepository() persistence.ModelRepository {
	return fp.modelRepo
}

// AgentRepository returns the agent repository implementation for file persistence.
func (fp *Persistence) AgentRepository() persistence.AgentRepository {
	return fp.agentRepo
}

// LinkRepository returns the link repository implementation for file persistence.
func (fp *Persistence) LinkRepository() persistence.LinkRepository {
	return fp.linkRepo
}

// AuditLogRepository returns the audit log repository implementation for file persistence.
func (fp *Persistence) AuditLogRepository() persistence.AuditLogRepository {
	return fp.auditRepo
}
