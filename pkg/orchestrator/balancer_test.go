package orchestrator_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/orchestrator"
)

func makeTasks(n int) []*models.Task {
	tasks := make([]*models.Task, n)
	for i := range tasks {
		tasks[i] = &models.Task{ID: fmt.Sprintf("task-%d", i+1)}
	}

	return tasks
}

func TestAssignRoundRobin_SpreadAtMostOne(t *testing.T) {
	agents := []*models.Agent{{ID: "agent-a"}, {ID: "agent-b"}, {ID: "agent-c"}}

	assignments := orchestrator.AssignRoundRobin(makeTasks(5), agents)

	require.Len(t, assignments, 3)
	assert.Len(t, assignments["agent-a"], 2)
	assert.Len(t, assignments["agent-b"], 2)
	assert.Len(t, assignments["agent-c"], 1)

	min, max := 5, 0
	for _, tasks := range assignments {
		if len(tasks) < min {
			min = len(tasks)
		}

		if len(tasks) > max {
			max = len(tasks)
		}
	}

	assert.LessOrEqual(t, max-min, 1)
}

func TestAssignRoundRobin_SetsAgentID(t *testing.T) {
	agents := []*models.Agent{{ID: "agent-a"}, {ID: "agent-b"}}
	tasks := makeTasks(4)

	orchestrator.AssignRoundRobin(tasks, agents)

	assert.Equal(t, "agent-a", tasks[0].AgentID)
	assert.Equal(t, "agent-b", tasks[1].AgentID)
	assert.Equal(t, "agent-a", tasks[2].AgentID)
	assert.Equal(t, "agent-b", tasks[3].AgentID)
}

func TestAssignRoundRobin_NoAgents(t *testing.T) {
	assignments := orchestrator.AssignRoundRobin(makeTasks(3), nil)
	assert.Empty(t, assignments)
}

func TestDistributeTasks_UsesEnabledAgentsOnly(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)
	seedAgent(t, env.store, "agent-2", true)
	seedAgent(t, env.store, "agent-3", true)
	seedAgent(t, env.store, "agent-offline", false)

	assignments, err := env.coordinator.DistributeTasks(ctx, makeTasks(5))
	require.NoError(t, err)

	require.Len(t, assignments, 3)
	assert.NotContains(t, assignments, "agent-offline")

	total := 0
	for _, tasks := range assignments {
		assert.LessOrEqual(t, len(tasks), 2)
		assert.GreaterOrEqual(t, len(tasks), 1)
		total += len(tasks)
	}

	assert.Equal(t, 5, total)
}

func TestDistributeTasks_NoEnabledAgents(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)

	seedAgent(t, env.store, "agent-offline", false)

	_, err := env.coordinator.DistributeTasks(t.Context(), makeTasks(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no enabled agents")
}
