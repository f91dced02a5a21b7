package protocol

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
)

// TaskQueue buffers tasks the capacity manager decided to throttle.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *models.Task) error

	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (*models.Task, error)

	Len(ctx context.Context) (int, error)
	Close() error
}
