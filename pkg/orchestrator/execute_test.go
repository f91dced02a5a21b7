package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/orchestrator"
)

func TestExecuteTask_SucceedsFirstAttempt(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, func(_ context.Context, _ *models.Agent, _ *models.Task) (map[string]any, error) {
		return map[string]any{"records": 42}, nil
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)
	task := &models.Task{ID: "task-1", Name: "extract", AgentID: "agent-1"}

	result, err := env.coordinator.ExecuteTask(ctx, task)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, models.TaskStateCompleted, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 42, result.Output["records"])
	assert.Equal(t, models.TaskStateCompleted, task.State)

	completed := env.bus.PublishedEvents(events.TaskCompletedEvent)
	require.Len(t, completed, 1)
	assert.Empty(t, env.bus.PublishedEvents(events.TaskRetryingEvent))
}

func TestExecuteTask_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	env := newCoordinatorEnv(t, orchestrator.Options{RetryPolicy: quickRetries(2)}, func(_ context.Context, _ *models.Agent, _ *models.Task) (map[string]any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient failure")
		}

		return map[string]any{"ok": true}, nil
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)
	task := &models.Task{ID: "task-1", AgentID: "agent-1"}

	result, err := env.coordinator.ExecuteTask(ctx, task)
	require.NoError(t, err)

	assert.Equal(t, models.TaskStateCompleted, result.State)
	assert.Equal(t, 2, result.Attempts)
	assert.EqualValues(t, 2, calls.Load())

	retrying := env.bus.PublishedEvents(events.TaskRetryingEvent)
	require.Len(t, retrying, 1)

	retry, ok := retrying[0].(events.TaskRetrying)
	require.True(t, ok)
	assert.Equal(t, 1, retry.Attempt)
	assert.Equal(t, 3, retry.MaxAttempts)

	// Both attempts land in the agent's stats.
	saved, err := env.store.AgentRepository().GetByID(ctx, "agent-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, saved.Stats.TotalExecutions)
	assert.EqualValues(t, 1, saved.Stats.Successes)
	assert.EqualValues(t, 1, saved.Stats.Failures)
}

func TestExecuteTask_IsolatesAgentAfterExhaustingRetries(t *testing.T) {
	var calls atomic.Int32

	env := newCoordinatorEnv(t, orchestrator.Options{RetryPolicy: quickRetries(2)}, func(_ context.Context, _ *models.Agent, _ *models.Task) (map[string]any, error) {
		calls.Add(1)

		return nil, errors.New("connection refused")
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)
	task := &models.Task{ID: "task-1", AgentID: "agent-1"}

	result, err := env.coordinator.ExecuteTask(ctx, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")

	// MaxRetries of 2 allows exactly three attempts in total.
	assert.EqualValues(t, 3, calls.Load())
	require.NotNil(t, result)
	assert.Equal(t, models.TaskStateIsolated, result.State)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "connection refused", result.Error)

	saved, err := env.store.AgentRepository().GetByID(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.False(t, saved.Enabled)

	assert.Len(t, env.bus.PublishedEvents(events.TaskRetryingEvent), 2)
	assert.Len(t, env.bus.PublishedEvents(events.TaskFailedEvent), 1)

	isolated := env.bus.PublishedEvents(events.AgentIsolatedEvent)
	require.Len(t, isolated, 1)

	event, ok := isolated[0].(events.AgentIsolated)
	require.True(t, ok)
	assert.Equal(t, "agent-1", event.AgentID)
	assert.Equal(t, 3, event.Attempts)

	entries, err := env.store.AuditLogRepository().ListByAction(ctx, models.AuditAgentIsolated)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// The isolated agent refuses further work until re-enabled.
	_, err = env.coordinator.ExecuteTask(ctx, &models.Task{ID: "task-2", AgentID: "agent-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is isolated")
}

func TestExecuteTask_UnknownExecutorKindIsNotRetried(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{RetryPolicy: quickRetries(2)}, nil)
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)

	_, err := env.coordinator.ExecuteTask(ctx, &models.Task{ID: "task-1", AgentID: "agent-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create executor")
	assert.Empty(t, env.bus.PublishedEvents(events.TaskRetryingEvent))
}

func TestExecuteTask_UnknownAgent(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)

	_, err := env.coordinator.ExecuteTask(t.Context(), &models.Task{ID: "task-1", AgentID: "agent-ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExecuteTask_NilTask(t *testing.T) {
	env := newCoordinatorEnv(t, orchestrator.Options{}, nil)

	_, err := env.coordinator.ExecuteTask(t.Context(), nil)
	require.Error(t, err)
}

func TestExecuteTask_SharedResourceRunsInArrivalOrder(t *testing.T) {
	var (
		mu      sync.Mutex
		order   []string
		active  atomic.Int32
		overlap atomic.Bool
	)

	env := newCoordinatorEnv(t, orchestrator.Options{}, func(_ context.Context, _ *models.Agent, task *models.Task) (map[string]any, error) {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}

		mu.Lock()
		order = append(order, task.ID)
		mu.Unlock()

		time.Sleep(50 * time.Millisecond)
		active.Add(-1)

		return nil, nil
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)

	var wg sync.WaitGroup

	for _, id := range []string{"task-a", "task-b", "task-c"} {
		task := &models.Task{ID: id, AgentID: "agent-1", Resource: "warehouse-lock"}

		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := env.coordinator.ExecuteTask(ctx, task)
			assert.NoError(t, err)
		}()

		// Stagger submissions so arrival order is unambiguous.
		time.Sleep(20 * time.Millisecond)
	}

	wg.Wait()

	assert.Equal(t, []string{"task-a", "task-b", "task-c"}, order)
	assert.False(t, overlap.Load(), "tasks sharing a resource key must never overlap")
}

func TestExecuteTask_DistinctResourcesRunConcurrently(t *testing.T) {
	var active atomic.Int32

	bothActive := make(chan struct{})

	env := newCoordinatorEnv(t, orchestrator.Options{}, func(_ context.Context, _ *models.Agent, _ *models.Task) (map[string]any, error) {
		if active.Add(1) == 2 {
			close(bothActive)
		}
		defer active.Add(-1)

		// With serialized execution the second executor would only start
		// after the first returned, so this wait could never be satisfied.
		select {
		case <-bothActive:
			return nil, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("no concurrent execution observed")
		}
	})
	ctx := t.Context()

	seedAgent(t, env.store, "agent-1", true)

	var wg sync.WaitGroup

	for _, resource := range []string{"lock-a", "lock-b"} {
		task := &models.Task{ID: "task-" + resource, AgentID: "agent-1", Resource: resource}

		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := env.coordinator.ExecuteTask(ctx, task)
			assert.NoError(t, err, "tasks on different resource keys must not serialize")
		}()
	}

	wg.Wait()
}
