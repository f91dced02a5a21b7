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
	"github.com/loomhq/loom/pkg/persistence"
)

// AgentRepository handles agent-related file operations.
type AgentRepository struct {
	root string // File system root for storing agents
}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(root string) *AgentRepository {
	return &AgentRepository{root: root}
}

// Save saves an agent to the file system.
func (ar *AgentRepository) Save(_ context.Context, agent *models.Agent) error {
	err := os.MkdirAll(ar.root+"/agents", 0750)
	if err != nil {
		return fmt.Errorf("failed to create agents directory: %w", err)
	}

	now := time.Now().UTC()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}

	agent.UpdatedAt = now

	data, err := json.MarshalIndent(agent, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal agent %s: %w", agent.ID, err)
	}

	filePath := path.Join(ar.root+"/agents", agent.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// SaveAll persists a batch of agents. The file system has no transactions, so
// a failure removes the agents written earlier in the batch before returning.
func (ar *AgentRepository) SaveAll(ctx context.Context, agents []*models.Agent) error {
	saved := make([]string, 0, len(agents))

	for _, agent := range agents {
		err := ar.Save(ctx, agent)
		if err != nil {
			for _, id := range saved {
				_ = ar.Delete(ctx, id)
			}

			return fmt.Errorf("failed to save agent %s in batch: %w", agent.ID, err)
		}

		saved = append(saved, agent.ID)
	}

	return nil
}

// GetByID retrieves an agent by its ID from the file system.
func (ar *AgentRepository) GetByID(_ context.Context, id string) (*models.Agent, error) {
	filePath := filepath.Clean(path.Join(ar.root, "agents", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch agent %s: %w", id, err)
	}

	var agent models.Agent

	err = json.Unmarshal(body, &agent)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent %s: %w", id, err)
	}

	return &agent, nil
}

// List returns every registered agent sorted by ID.
func (ar *AgentRepository) List(ctx context.Context) ([]*models.Agent, error) {
	root := os.DirFS(ar.root + "/agents")

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list agent files: %w", err)
	}

	agents := make([]*models.Agent, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		agentID := file[:len(file)-5] // Remove .json extension

		agent, err := ar.GetByID(ctx, agentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load agent %s: %w", agentID, err)
		}

		if agent != nil {
			agents = append(agents, agent)
		}
	}

	sort.Slice(agents, func(i, j int) bool {
		return agents[i].ID < agents[j].ID
	})

	return agents, nil
}

// ListEnabled returns only agents currently eligible for work.
func (ar *AgentRepository) ListEnabled(ctx context.Context) ([]*models.Agent, error) {
	all, err := ar.List(ctx)
	if err != nil {
		return nil, err
	}

	enabled := make([]*models.Agent, 0, len(all))

	for _, agent := range all {
		if agent.Enabled {
			enabled = append(enabled, agent)
		}
	}

	return enabled, nil
}

// FindByCapability returns enabled agents with the named capability flag set.
func (ar *AgentRepository) FindByCapability(ctx context.Context, capability string) ([]*models.Agent, error) {
	enabled, err := ar.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Agent, 0)

	for _, agent := range enabled {
		if agent.Capabilities.Has(capability) {
			matched = append(matched, agent)
		}
	}

	return matched, nil
}

// FindBySupportedDataType returns enabled agents declaring support for the given data type.
func (ar *AgentRepository) FindBySupportedDataType(ctx context.Context, dataType string) ([]*models.Agent, error) {
	enabled, err := ar.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Agent, 0)

	for _, agent := range enabled {
		for _, supported := range agent.Capabilities.SupportedDataTypes {
			if supported == dataType {
				matched = append(matched, agent)

				break
			}
		}
	}

	return matched, nil
}

// SetEnabled flips the isolation state of an agent.
func (ar *AgentRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	agent, err := ar.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if agent == nil {
		return persistence.NewAgentError("SetEnabled", id, persistence.ErrAgentNotFound)
	}

	agent.Enabled = enabled

	return ar.Save(ctx, agent)
}

// RecordExecution folds one task outcome into the agent's stats.
func (ar *AgentRepository) RecordExecution(ctx context.Context, id string, duration time.Duration, success bool) error {
	agent, err := ar.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if agent == nil {
		return persistence.NewAgentError("RecordExecution", id, persistence.ErrAgentNotFound)
	}

	agent.Stats.Record(duration, success)

	return ar.Save(ctx, agent)
}

// Delete removes an agent by its ID.
func (ar *AgentRepository) Delete(_ context.Context, id string) error {
	filePath := path.Join(ar.root+"/agents", id+".json")

	err := os.Remove(filePath)

	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}

	return nil
}

// DeleteAll removes every agent file.
func (ar *AgentRepository) DeleteAll(ctx context.Context) error {
	all, err := ar.List(ctx)
	if err != nil {
		return err
	}

	for _, agent := range all {
		err := ar.Delete(ctx, agent.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

// Exists reports whether an agent with the given ID is present.
func (ar *AgentRepository) Exists(ctx context.Context, id string) (bool, error) {
	agent, err := ar.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	return agent != nil, nil
}
