package models

import (
	"math"
	"time"
)

// TaskState tracks a task through the execution state machine:
// queued -> executing -> {completed | failed}; failed tasks move to retrying
// while the policy allows and end in completed or isolated.
type TaskState string

const (
	TaskStateQueued    TaskState = "queued"
	TaskStateExecuting TaskState = "executing"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateRetrying  TaskState = "retrying"
	TaskStateIsolated  TaskState = "isolated"
)

// Task is a unit of work routed to an agent.
type Task struct {
	ID        string         `json:"id"       validate:"required"`
	Name      string         `json:"name"`
	AgentID   string         `json:"agent_id" validate:"required"`
	ModelID   string         `json:"model_id,omitempty"`
	Operation OperationType  `json:"operation,omitempty"`
	Resource  string         `json:"resource,omitempty"` // Shared-resource key, serialized when set
	Payload   map[string]any `json:"payload,omitempty"`
	State     TaskState      `json:"state"`
	Attempts  int            `json:"attempts"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TaskResult reports the outcome of a task execution, including how many
// attempts it took when retries were involved.
type TaskResult struct {
	TaskID    string         `json:"task_id"`
	AgentID   string         `json:"agent_id"`
	State     TaskState      `json:"state"`
	Output    map[string]any `json:"output,omitempty"`
	Attempts  int            `json:"attempts"`
	Duration  time.Duration  `json:"duration"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// BackoffStrategy selects how retry delays grow between attempts.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy bounds how often and how quickly a failed task is retried.
// MaxRetries counts retries beyond the initial attempt, so MaxRetries of 2
// allows 3 attempts in total.
type RetryPolicy struct {
	MaxRetries   int             `json:"max_retries"   validate:"gte=0"`
	Strategy     BackoffStrategy `json:"strategy"`
	InitialDelay time.Duration   `json:"initial_delay"`
	MaxDelay     time.Duration   `json:"max_delay"`
	Multiplier   float64         `json:"multiplier"`
}

// DefaultRetryPolicy returns the policy applied when a task carries none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		Strategy:     BackoffExponential,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// CalculateDelay computes the wait before the given retry attempt (1-based).
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	var delay time.Duration

	switch p.Strategy {
	case BackoffConstant:
		delay = p.InitialDelay
	case BackoffLinear:
		delay = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		multiplier := p.Multiplier
		if multiplier <= 0 {
			multiplier = 2.0
		}

		delay = time.Duration(float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1)))
	default:
		delay = p.InitialDelay
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	return delay
}

// MaxAttempts returns the total attempt budget including the initial try.
func (p RetryPolicy) MaxAttempts() int {
	return p.MaxRetries + 1
}
