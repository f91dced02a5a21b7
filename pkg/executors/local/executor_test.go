package local_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/executors/local"
	"github.com/loomhq/loom/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestExecutor_Execute(t *testing.T) {
	t.Parallel()

	executor := local.NewExecutor(testLogger())

	agent := &models.Agent{ID: "agent-1", Name: "Local Agent", Kind: local.ExecutorKind, Enabled: true}
	task := &models.Task{
		ID:      "task-1",
		AgentID: "agent-1",
		Payload: map[string]any{"message": "hello"},
	}

	output, err := executor.Execute(t.Context(), agent, task)
	require.NoError(t, err)

	assert.Equal(t, "task-1", output["task_id"])

	payload := output["payload"].(map[string]any)
	assert.Equal(t, "hello", payload["message"])
}

func TestFactory_Create(t *testing.T) {
	t.Parallel()

	factory := local.NewFactory()
	assert.Equal(t, "local", factory.Kind())

	executor, err := factory.Create(nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "local", executor.Kind())
}
