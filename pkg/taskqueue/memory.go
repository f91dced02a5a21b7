package taskqueue

import (
	"context"
	"sync"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

var _ protocol.TaskQueue = (*MemoryQueue)(nil)

// MemoryQueue is an in-process FIFO task buffer. It is the default backend
// for single-node deployments and for tests.
type MemoryQueue struct {
	mu      sync.Mutex
	tasks   []*models.Task
	arrival chan struct{} // Closed and replaced on every enqueue to wake waiters
	closed  bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{arrival: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(_ context.Context, task *models.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	close(q.arrival)
	q.arrival = make(chan struct{})

	return nil
}

// Dequeue blocks until a task arrives, the context is done, or the queue is
// closed. Tasks already buffered drain out before ErrQueueClosed surfaces.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*models.Task, error) {
	for {
		q.mu.Lock()

		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()

			return task, nil
		}

		if q.closed {
			q.mu.Unlock()

			return nil, ErrQueueClosed
		}

		arrival := q.arrival
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-arrival:
		}
	}
}

func (q *MemoryQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.arrival)

	return nil
}
