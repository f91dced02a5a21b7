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
	"github.com/loomhq/loom/pkg/persistence"
)

// AgentRepository handles agent-related database operations. Capability flags
// live in their own columns so discovery filters run in SQL; stats columns are
// accumulated in place.
type AgentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(db *sql.DB, logger *slog.Logger) *AgentRepository {
	return &AgentRepository{db: db, logger: logger}
}

const agentColumns = `
			id
		  , name
		  , kind
		  , enabled
		  , can_read
		  , can_write
		  , can_execute
		  , can_analyze
		  , can_orchestrate
		  , max_concurrent_tasks
		  , supported_data_types
		  , total_executions
		  , successes
		  , failures
		  , total_duration_ms
		  , created_at
		  , updated_at
`

// capabilityColumns maps capability flag names to their columns. Filtering
// goes through this allowlist, never through string interpolation of caller
// input.
var capabilityColumns = map[string]string{
	models.CapabilityRead:        "can_read",
	models.CapabilityWrite:       "can_write",
	models.CapabilityExecute:     "can_execute",
	models.CapabilityAnalyze:     "can_analyze",
	models.CapabilityOrchestrate: "can_orchestrate",
}

// Save creates or replaces an agent.
func (r *AgentRepository) Save(ctx context.Context, agent *models.Agent) error {
	now := time.Now().UTC()

	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}

	agent.UpdatedAt = now

	dataTypesJSON, err := json.Marshal(agent.Capabilities.SupportedDataTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal supported data types: %w", err)
	}

	query := `
		INSERT INTO agents (id, name, kind, enabled,
can_read, can_write, can_execute, can_analyze, can_orchestrate, max_concurrent_tasks, supported_data_types,
total_executions, successes, failures, total_duration_ms, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			enabled = EXCLUDED.enabled,
			can_read = EXCLUDED.can_read,
			can_write = EXCLUDED.can_write,
			can_execute = EXCLUDED.can_execute,
			can_analyze = EXCLUDED.can_analyze,
			can_orchestrate = EXCLUDED.can_orchestrate,
			max_concurrent_tasks = EXCLUDED.max_concurrent_tasks,
			supported_data_types = EXCLUDED.supported_data_types,
			total_executions = EXCLUDED.total_executions,
			successes = EXCLUDED.successes,
			failures = EXCLUDED.failures,
			total_duration_ms = EXCLUDED.total_duration_ms,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.Kind,
		agent.Enabled,
		agent.Capabilities.CanRead,
		agent.Capabilities.CanWrite,
		agent.Capabilities.CanExecute,
		agent.Capabilities.CanAnalyze,
		agent.Capabilities.CanOrchestrate,
		agent.Capabilities.MaxConcurrentTasks,
		dataTypesJSON,
		agent.Stats.TotalExecutions,
		agent.Stats.Successes,
		agent.Stats.Failures,
		agent.Stats.TotalDurationMS,
		agent.CreatedAt,
		agent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}

	return nil
}

// SaveAll persists a batch of agents in a single transaction.
func (r *AgentRepository) SaveAll(ctx context.Context, agents []*models.Agent) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, agent := range agents {
		now := time.Now().UTC()

		if agent.CreatedAt.IsZero() {
			agent.CreatedAt = now
		}

		agent.UpdatedAt = now

		var dataTypesJSON []byte

		dataTypesJSON, err = json.Marshal(agent.Capabilities.SupportedDataTypes)
		if err != nil {
			return fmt.Errorf("failed to marshal supported data types: %w", err)
		}

		query := `
			INSERT INTO agents (id, name, kind, enabled,
can_read, can_write, can_execute, can_analyze, can_orchestrate, max_concurrent_tasks, supported_data_types,
total_executions, successes, failures, total_duration_ms, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				kind = EXCLUDED.kind,
				enabled = EXCLUDED.enabled,
				can_read = EXCLUDED.can_read,
				can_write = EXCLUDED.can_write,
				can_execute = EXCLUDED.can_execute,
				can_analyze = EXCLUDED.can_analyze,
				can_orchestrate = EXCLUDED.can_orchestrate,
				max_concurrent_tasks = EXCLUDED.max_concurrent_tasks,
				supported_data_types = EXCLUDED.supported_data_types,
				total_executions = EXCLUDED.total_executions,
				successes = EXCLUDED.successes,
				failures = EXCLUDED.failures,
				total_duration_ms = EXCLUDED.total_duration_ms,
				updated_at = EXCLUDED.updated_at
		`

		_, err = tx.ExecContext(ctx, query,
			agent.ID,
			agent.Name,
			agent.Kind,
			agent.Enabled,
			agent.Capabilities.CanRead,
			agent.Capabilities.CanWrite,
			agent.Capabilities.CanExecute,
			agent.Capabilities.CanAnalyze,
			agent.Capabilities.CanOrchestrate,
			agent.Capabilities.MaxConcurrentTasks,
			dataTypesJSON,
			agent.Stats.TotalExecutions,
			agent.Stats.Successes,
			agent.Stats.Failures,
			agent.Stats.TotalDurationMS,
			agent.CreatedAt,
			agent.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save agent %s in batch: %w", agent.ID, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID returns the agent with the given ID, or nil when missing.
func (r *AgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	query := `
		SELECT` + agentColumns + `
		FROM agents
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	agent, err := r.scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan agent: %w", err)
	}

	return agent, nil
}

// List returns every registered agent ordered by ID.
func (r *AgentRepository) List(ctx context.Context) ([]*models.Agent, error) {
	query := `
		SELECT` + agentColumns + `
		FROM agents
		ORDER BY id
	`

	return r.queryAgents(ctx, query)
}

// ListEnabled returns only agents currently eligible for work.
func (r *AgentRepository) ListEnabled(ctx context.Context) ([]*models.Agent, error) {
	query := `
		SELECT` + agentColumns + `
		FROM agents
		WHERE enabled = TRUE
		ORDER BY id
	`

	return r.queryAgents(ctx, query)
}

// FindByCapability returns enabled agents with the named capability flag set.
// Unknown capability names match nothing.
func (r *AgentRepository) FindByCapability(ctx context.Context, capability string) ([]*models.Agent, error) {
	column, ok := capabilityColumns[capability]
	if !ok {
		return make([]*models.Agent, 0), nil
	}

	query := `
		SELECT` + agentColumns + `
		FROM agents
		WHERE enabled = TRUE AND ` + column + ` = TRUE
		ORDER BY id
	`

	return r.queryAgents(ctx, query)
}

// FindBySupportedDataType returns enabled agents declaring support for the
// given data type. The JSONB membership test is done in Go over the enabled
// set, which stays small.
func (r *AgentRepository) FindBySupportedDataType(ctx context.Context, dataType string) ([]*models.Agent, error) {
	enabled, err := r.ListEnabled(ctx)
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
func (r *AgentRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := "UPDATE agents SET enabled = $2, updated_at = NOW() WHERE id = $1"

	result, err := r.db.ExecContext(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to update agent enabled state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewAgentError("SetEnabled", id, persistence.ErrAgentNotFound)
	}

	return nil
}

// RecordExecution folds one task outcome into the agent's stats in place.
func (r *AgentRepository) RecordExecution(ctx context.Context, id string, duration time.Duration, success bool) error {
	query := `
		UPDATE agents SET
			total_executions = total_executions + 1,
			successes = successes + CASE WHEN $2 THEN 1 ELSE 0 END,
			failures = failures + CASE WHEN $2 THEN 0 ELSE 1 END,
			total_duration_ms = total_duration_ms + $3,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, success, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record agent execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return persistence.NewAgentError("RecordExecution", id, persistence.ErrAgentNotFound)
	}

	return nil
}

// Delete removes an agent permanently.
func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM agents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Agent doesn't exist - this is not an error
		return nil
	}

	return nil
}

// DeleteAll removes every agent.
func (r *AgentRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM agents")
	if err != nil {
		return fmt.Errorf("failed to delete agents: %w", err)
	}

	return nil
}

// Exists reports whether an agent with the given ID is present.
func (r *AgentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM agents WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check agent existence: %w", err)
	}

	return exists, nil
}

func (r *AgentRepository) queryAgents(ctx context.Context, query string, args ...any) ([]*models.Agent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	agents := make([]*models.Agent, 0)

	for rows.Next() {
		agent, err := r.scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}

		agents = append(agents, agent)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}

func (r *AgentRepository) scanAgent(scanner interface {
	Scan(dest ...any) error
}) (*models.Agent, error) {
	var (
		agent         models.Agent
		dataTypesJSON []byte
	)

	err := scanner.Scan(
		&agent.ID,
		&agent.Name,
		&agent.Kind,
		&agent.Enabled,
		&agent.Capabilities.CanRead,
		&agent.Capabilities.CanWrite,
		&agent.Capabilities.CanExecute,
		&agent.Capabilities.CanAnalyze,
		&agent.Capabilities.CanOrchestrate,
		&agent.Capabilities.MaxConcurrentTasks,
		&dataTypesJSON,
		&agent.Stats.TotalExecutions,
		&agent.Stats.Successes,
		&agent.Stats.Failures,
		&agent.Stats.TotalDurationMS,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dataTypesJSON != nil {
		err := json.Unmarshal(dataTypesJSON, &agent.Capabilities.SupportedDataTypes)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal supported data types: %w", err)
		}
	}

	return &agent, nil
}
