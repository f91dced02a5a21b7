package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomhq/loom/pkg/models"
)

// loadCounter tracks how many tasks are currently executing.
type loadCounter struct {
	mu      sync.Mutex
	current int
}

func (l *loadCounter) inc() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current++
}

func (l *loadCounter) dec() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
}

func (l *loadCounter) value() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.current
}

// CapacityDecision is the outcome of a capacity assessment.
type CapacityDecision struct {
	Accept           bool    `json:"accept"`
	Accepted         int     `json:"accepted"`
	Overflow         int     `json:"overflow"`
	QueueRecommended bool    `json:"queue_recommended"`
	Utilization      float64 `json:"utilization"`
}

// AssessCapacity decides whether incoming tasks fit within max concurrency.
// Overflow beyond the remaining headroom is counted and recommended for
// queueing. Utilization reports current over max.
func AssessCapacity(current, max, incoming int) CapacityDecision {
	if max <= 0 {
		return CapacityDecision{
			Accept:           false,
			Overflow:         incoming,
			QueueRecommended: incoming > 0,
			Utilization:      1.0,
		}
	}

	headroom := max - current
	if headroom < 0 {
		headroom = 0
	}

	decision := CapacityDecision{
		Utilization: float64(current) / float64(max),
	}

	if incoming <= headroom {
		decision.Accept = true
		decision.Accepted = incoming

		return decision
	}

	decision.Accepted = headroom
	decision.Overflow = incoming - headroom
	decision.QueueRecommended = true

	return decision
}

// CurrentLoad reports the number of tasks executing right now.
func (c *Coordinator) CurrentLoad() int {
	return c.load.value()
}

// AssessCapacity evaluates incoming load against the coordinator's limit.
func (c *Coordinator) AssessCapacity(incoming int) CapacityDecision {
	return AssessCapacity(c.load.value(), c.maxTasks, incoming)
}

// AdmitTasks splits tasks into the slice that fits current capacity and the
// overflow, which is pushed onto the deferred-task queue.
func (c *Coordinator) AdmitTasks(ctx context.Context, tasks []*models.Task) ([]*models.Task, CapacityDecision, error) {
	decision := c.AssessCapacity(len(tasks))

	accepted := tasks[:decision.Accepted]

	for _, task := range tasks[decision.Accepted:] {
		err := c.taskQueue.Enqueue(ctx, task)
		if err != nil {
			return accepted, decision, fmt.Errorf("failed to queue task %s: %w", task.ID, err)
		}
	}

	if decision.Overflow > 0 {
		c.logger.InfoContext(ctx, "Throttling incoming tasks", "accepted", decision.Accepted, "deferred", decision.Overflow)
	}

	return accepted, decision, nil
}
