package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/orchestrator"
)

func TestAssessCapacity(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		max      int
		incoming int
		want     orchestrator.CapacityDecision
	}{
		{
			name:    "fits within headroom",
			current: 2, max: 10, incoming: 5,
			want: orchestrator.CapacityDecision{Accept: true, Accepted: 5, Utilization: 0.2},
		},
		{
			name:    "exact headroom",
			current: 5, max: 10, incoming: 5,
			want: orchestrator.CapacityDecision{Accept: true, Accepted: 5, Utilization: 0.5},
		},
		{
			name:    "overflow recommends queueing",
			current: 8, max: 10, incoming: 5,
			want: orchestrator.CapacityDecision{Accepted: 2, Overflow: 3, QueueRecommended: true, Utilization: 0.8},
		},
		{
			name:    "saturated",
			current: 10, max: 10, incoming: 3,
			want: orchestrator.CapacityDecision{Overflow: 3, QueueRecommended: true, Utilization: 1.0},
		},
		{
			name:    "zero max rejects everything",
			current: 0, max: 0, incoming: 4,
			want: orchestrator.CapacityDecision{Overflow: 4, QueueRecommended: true, Utilization: 1.0},
		},
		{
			name:    "nothing incoming",
			current: 3, max: 10, incoming: 0,
			want: orchestrator.CapacityDecision{Accept: true, Utilization: 0.3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orchestrator.AssessCapacity(tt.current, tt.max, tt.incoming)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdmitTasks_QueuesOverflow(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{MaxConcurrentTasks: 2}, nil)
	ctx := t.Context()

	tasks := make([]*models.Task, 5)
	for i := range tasks {
		tasks[i] = &models.Task{ID: string(rune('a' + i)), AgentID: "agent-1"}
	}

	accepted, decision, err := env.coordinator.AdmitTasks(ctx, tasks)
	require.NoError(t, err)

	assert.Len(t, accepted, 2)
	assert.Same(t, tasks[0], accepted[0])
	assert.Same(t, tasks[1], accepted[1])
	assert.Equal(t, 2, decision.Accepted)
	assert.Equal(t, 3, decision.Overflow)
	assert.True(t, decision.QueueRecommended)

	depth, err := env.queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	// Deferred tasks come back out in arrival order.
	deferred, err := env.queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, tasks[2].ID, deferred.ID)
}

func TestAdmitTasks_AllFit(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{MaxConcurrentTasks: 8}, nil)
	ctx := t.Context()

	tasks := []*models.Task{{ID: "task-1"}, {ID: "task-2"}}

	accepted, decision, err := env.coordinator.AdmitTasks(ctx, tasks)
	require.NoError(t, err)
	assert.Len(t, accepted, 2)
	assert.True(t, decision.Accept)
	assert.Zero(t, decision.Overflow)

	depth, err := env.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}
