package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/orchestrator"
)

// runRecorder tracks which tasks actually reached an executor.
type runRecorder struct {
	mu       sync.Mutex
	executed []string
}

func (r *runRecorder) record(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, taskID)
}

func (r *runRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.executed...)
}

func sleepMs(task *models.Task) time.Duration {
	ms, _ := task.Payload["sleep_ms"].(int)

	return time.Duration(ms) * time.Millisecond
}

func TestExecuteRun_SequentialStagesInOrder(t *testing.T) {
	recorder := &runRecorder{}

	env := newCoordinatorEnv(t, orchestrator.Options{}, func(_ context.Context, _ *models.Agent, task *models.Task) (map[string]any, error) {
		recorder.record(task.ID)

		return map[string]any{"records": 10}, nil
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)

	// Stages arrive out of order; execution must follow stage order.
	plan := orchestrator.RunPlan{
		ModelID: "model-etl",
		Stages: []orchestrator.RunStage{
			{Order: 2, Name: "load", Tasks: []*models.Task{{ID: "task-load", AgentID: "agent-1"}}},
			{Order: 1, Name: "extract", Tasks: []*models.Task{{ID: "task-extract", AgentID: "agent-1"}}},
		},
	}

	result, err := env.coordinator.ExecuteRun(ctx, plan)
	require.NoError(t, err)

	assert.Equal(t, []string{"task-extract", "task-load"}, recorder.seen())
	assert.Equal(t, 2, result.StagesExecuted)
	assert.Zero(t, result.FailedStage)
	assert.EqualValues(t, 20, result.Outputs["records"])

	started := env.bus.PublishedEvents(events.RunStartedEvent)
	require.Len(t, started, 1)
	assert.Equal(t, "sequential", started[0].(events.RunStarted).Mode)

	assert.Len(t, env.bus.PublishedEvents(events.RunStageCompletedEvent), 2)
	assert.Len(t, env.bus.PublishedEvents(events.RunCompletedEvent), 1)
}

func TestExecuteRun_FailureAbortsLaterStages(t *testing.T) {
	recorder := &runRecorder{}

	env := newCoordinatorEnv(t, orchestrator.Options{RetryPolicy: quickRetries(0)}, func(_ context.Context, _ *models.Agent, task *models.Task) (map[string]any, error) {
		recorder.record(task.ID)

		if task.ID == "task-2" {
			return nil, errors.New("transform step crashed")
		}

		return map[string]any{"records": 5}, nil
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)
	seedAgent(t, env.store, "agent-2", true)
	seedAgent(t, env.store, "agent-3", true)

	plan := orchestrator.RunPlan{
		ModelID: "model-etl",
		Stages: []orchestrator.RunStage{
			{Order: 1, Tasks: []*models.Task{{ID: "task-1", AgentID: "agent-1"}}},
			{Order: 2, Tasks: []*models.Task{{ID: "task-2", AgentID: "agent-2"}}},
			{Order: 3, Tasks: []*models.Task{{ID: "task-3", AgentID: "agent-3"}}},
		},
	}

	result, err := env.coordinator.ExecuteRun(ctx, plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed at stage 2")

	// Stage 1 completed, stage 3 was never attempted.
	assert.Equal(t, []string{"task-1", "task-2"}, recorder.seen())
	assert.Equal(t, 1, result.StagesExecuted)
	assert.Equal(t, 2, result.FailedStage)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, 1, result.Stages[0].Stage)
	assert.EqualValues(t, 5, result.Outputs["records"])

	failed := env.bus.PublishedEvents(events.RunFailedEvent)
	require.Len(t, failed, 1)

	event, ok := failed[0].(events.RunFailed)
	require.True(t, ok)
	assert.Equal(t, 2, event.FailedStage)
	assert.Equal(t, 1, event.StagesExecuted)

	assert.Empty(t, env.bus.PublishedEvents(events.RunCompletedEvent))
}

func TestExecuteRun_ParallelStageDurationIsMaxNotSum(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, func(ctx context.Context, _ *models.Agent, task *models.Task) (map[string]any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleepMs(task)):
		}

		return map[string]any{"records": task.Payload["records"]}, nil
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)
	seedAgent(t, env.store, "agent-2", true)
	seedAgent(t, env.store, "agent-3", true)

	plan := orchestrator.RunPlan{
		Stages: []orchestrator.RunStage{
			{Order: 1, Name: "fan-out", Tasks: []*models.Task{
				{ID: "task-a", AgentID: "agent-1", Payload: map[string]any{"sleep_ms": 120, "records": 100}},
				{ID: "task-b", AgentID: "agent-2", Payload: map[string]any{"sleep_ms": 110, "records": 200}},
				{ID: "task-c", AgentID: "agent-3", Payload: map[string]any{"sleep_ms": 130, "records": 300}},
			}},
		},
	}

	result, err := env.coordinator.ExecuteRun(ctx, plan)
	require.NoError(t, err)
	require.Len(t, result.Stages, 1)

	stage := result.Stages[0]
	assert.GreaterOrEqual(t, stage.Duration, 130*time.Millisecond)
	assert.Less(t, stage.Duration, 360*time.Millisecond, "stage duration must be the longest member, not the sum")

	// The synchronization point merges member outputs before the next stage.
	assert.EqualValues(t, 600, stage.Outputs["records"])
	assert.Len(t, stage.Tasks, 3)

	started := env.bus.PublishedEvents(events.RunStartedEvent)
	require.Len(t, started, 1)
	assert.Equal(t, "parallel", started[0].(events.RunStarted).Mode)
}

func TestExecuteRun_EmptyPlan(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)

	_, err := env.coordinator.ExecuteRun(t.Context(), orchestrator.RunPlan{})
	require.Error(t, err)

	_, err = env.coordinator.ExecuteRun(t.Context(), orchestrator.RunPlan{
		Stages: []orchestrator.RunStage{{Order: 1}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tasks")
}
