// Package local provides an in-process executor for development and tests.
package local

import (
	"context"
	"log/slog"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

const ExecutorKind = "local"

func NewFactory() *Factory {
	return &Factory{}
}

type Factory struct{}

func (f *Factory) Kind() string {
	return ExecutorKind
}

func (f *Factory) Create(config map[string]any, logger *slog.Logger) (protocol.AgentExecutor, error) {
	return NewExecutor(logger), nil
}

// Executor logs the task and echoes its payload back as the output.
type Executor struct {
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	return &Executor{logger: logger.With("module", "local-executor")}
}

func (e *Executor) Kind() string {
	return ExecutorKind
}

func (e *Executor) Execute(ctx context.Context, agent *models.Agent, task *models.Task) (map[string]any, error) {
	e.logger.InfoContext(ctx, "Executing task locally",
		"task_id", task.ID,
		"agent_id", agent.ID,
		"operation", string(task.Operation))

	return map[string]any{
		"task_id": task.ID,
		"payload": task.Payload,
	}, nil
}
