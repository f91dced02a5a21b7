// Package protocol defines the interfaces and contracts for orchestration collaborators.
package protocol

import (
	"context"
	"log/slog"

	"github.com/loomhq/loom/pkg/models"
)

// AgentExecutor runs a single task attempt on behalf of an agent. Retry,
// isolation, and bookkeeping live in the coordinator; executors only do the
// work and report the outcome.
type AgentExecutor interface {
	Execute(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error)

	// Kind returns the agent kind this executor serves.
	Kind() string
}

// ExecutorFactory creates executor instances for one agent kind.
type ExecutorFactory interface {
	Create(config map[string]any, logger *slog.Logger) (AgentExecutor, error)
	Kind() string
}
