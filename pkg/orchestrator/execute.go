package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/otelhelper"
)

// ExecuteTask drives one task through the execution state machine:
// queued -> executing -> completed, or through retrying until the policy is
// exhausted and the agent is isolated. When the task names a shared
// resource, execution is serialized with every other task naming it.
//
// On exhaustion the returned result carries the isolated state alongside
// the error; infrastructure failures return a nil result.
func (c *Coordinator) ExecuteTask(ctx context.Context, task *models.Task) (*models.TaskResult, error) {
	if task == nil {
		return nil, fmt.Errorf("no task provided for execution")
	}

	ctx, span := otelhelper.StartSpan(ctx, c.tracer, "coordinator.execute_task",
		attribute.String(otelhelper.TaskIDKey, task.ID),
		attribute.String(otelhelper.AgentIDKey, task.AgentID),
	)
	defer span.End()

	if task.Resource != "" {
		err := c.gate.acquire(ctx, task.Resource)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}
		defer c.gate.release(task.Resource)
	}

	c.load.inc()
	defer c.load.dec()

	agent, err := c.persistence.AgentRepository().GetByID(ctx, task.AgentID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to fetch agent %s: %w", task.AgentID, err)
	}

	if agent == nil {
		err = fmt.Errorf("agent %s not found", task.AgentID)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if !agent.Enabled {
		err = fmt.Errorf("agent %s is isolated", agent.ID)
		otelhelper.SetError(span, err)

		return nil, err
	}

	if task.State == "" {
		task.State = models.TaskStateQueued
	}

	result, err := c.runAttempts(ctx, agent, task)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String(otelhelper.AgentIDKey, task.AgentID))
	}

	return result, err
}

func (c *Coordinator) runAttempts(ctx context.Context, agent *models.Agent, task *models.Task) (*models.TaskResult, error) {
	logger := c.logger.With("task_id", task.ID, "agent_id", agent.ID)
	policy := c.retryPolicy
	started := time.Now()

	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts(); attempt++ {
		task.State = models.TaskStateExecuting
		task.Attempts = attempt

		executor, err := c.registry.CreateExecutor(agent.Kind, task.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to create executor for agent %s: %w", agent.ID, err)
		}

		attemptStart := time.Now()
		output, err := executor.Execute(ctx, agent, task)
		attemptDuration := time.Since(attemptStart)

		recordErr := c.persistence.AgentRepository().RecordExecution(ctx, agent.ID, attemptDuration, err == nil)
		if recordErr != nil {
			logger.ErrorContext(ctx, "Failed to record execution stats", "error", recordErr)
		}

		if err == nil {
			return c.completeTask(ctx, agent, task, output, attempt, time.Since(started)), nil
		}

		lastErr = err
		task.State = models.TaskStateFailed
		logger.WarnContext(ctx, "Task attempt failed", "attempt", attempt, "max_attempts", policy.MaxAttempts(), "error", err)

		if attempt == policy.MaxAttempts() {
			break
		}

		delay := policy.CalculateDelay(attempt)
		task.State = models.TaskStateRetrying

		retrying := events.TaskRetrying{
			BaseEvent:   events.NewBaseEvent(events.TaskRetryingEvent, task.ID),
			TaskID:      task.ID,
			AgentID:     agent.ID,
			Attempt:     attempt,
			MaxAttempts: policy.MaxAttempts(),
			DelayMs:     delay.Milliseconds(),
			Error:       err.Error(),
		}

		c.publish(ctx, task.ID, retrying)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return c.isolateAgent(ctx, agent, task, lastErr, time.Since(started))
}

func (c *Coordinator) completeTask(ctx context.Context, agent *models.Agent, task *models.Task, output map[string]any, attempt int, duration time.Duration) *models.TaskResult {
	task.State = models.TaskStateCompleted
	task.UpdatedAt = time.Now().UTC()

	c.audit(ctx, models.AuditTaskExecuted, task.ID, agent.ID, map[string]any{
		"attempts": attempt,
		"state":    string(task.State),
	})

	completed := events.TaskCompleted{
		BaseEvent:  events.NewBaseEvent(events.TaskCompletedEvent, task.ID),
		TaskID:     task.ID,
		AgentID:    agent.ID,
		Attempts:   attempt,
		Output:     output,
		DurationMs: duration.Milliseconds(),
	}

	c.publish(ctx, task.ID, completed)

	if attempt > 1 {
		c.logger.InfoContext(ctx, "Task succeeded after retry", "task_id", task.ID, "attempt", attempt)
	}

	return &models.TaskResult{
		TaskID:    task.ID,
		AgentID:   agent.ID,
		State:     models.TaskStateCompleted,
		Output:    output,
		Attempts:  attempt,
		Duration:  duration,
		Timestamp: time.Now().UTC(),
	}
}

// isolateAgent handles a task that exhausted its retry budget: the agent is
// disabled until an operator re-enables it.
func (c *Coordinator) isolateAgent(ctx context.Context, agent *models.Agent, task *models.Task, lastErr error, duration time.Duration) (*models.TaskResult, error) {
	task.State = models.TaskStateIsolated
	task.UpdatedAt = time.Now().UTC()

	err := c.persistence.AgentRepository().SetEnabled(ctx, agent.ID, false)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to isolate agent", "agent_id", agent.ID, "error", err)
	}

	failed := events.TaskFailed{
		BaseEvent:  events.NewBaseEvent(events.TaskFailedEvent, task.ID),
		TaskID:     task.ID,
		AgentID:    agent.ID,
		Attempts:   task.Attempts,
		Error:      lastErr.Error(),
		DurationMs: duration.Milliseconds(),
	}

	c.publish(ctx, task.ID, failed)

	c.audit(ctx, models.AuditAgentIsolated, agent.ID, "coordinator", map[string]any{
		"task_id":  task.ID,
		"attempts": task.Attempts,
		"error":    lastErr.Error(),
	})

	isolated := events.AgentIsolated{
		BaseEvent: events.NewBaseEvent(events.AgentIsolatedEvent, agent.ID),
		AgentID:   agent.ID,
		TaskID:    task.ID,
		Attempts:  task.Attempts,
		Error:     lastErr.Error(),
	}

	c.publish(ctx, agent.ID, isolated)

	c.logger.WarnContext(ctx, "Agent isolated after exhausting retries", "agent_id", agent.ID, "task_id", task.ID, "attempts", task.Attempts)

	result := &models.TaskResult{
		TaskID:    task.ID,
		AgentID:   agent.ID,
		State:     models.TaskStateIsolated,
		Attempts:  task.Attempts,
		Duration:  duration,
		Error:     lastErr.Error(),
		Timestamp: time.Now().UTC(),
	}

	return result, fmt.Errorf("task %s failed after %d attempts: %w", task.ID, task.Attempts, lastErr)
}
