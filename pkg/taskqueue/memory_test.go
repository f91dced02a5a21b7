package taskqueue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/taskqueue"
)

func queuedTask(id string) *models.Task {
	return &models.Task{
		ID:        id,
		Name:      "Task " + id,
		AgentID:   "agent-1",
		Operation: "process",
	}
}

func TestMemoryQueue_FIFOOrder(t *testing.T) {
	t.Parallel()

	queue := taskqueue.NewMemoryQueue()

	for _, id := range []string{"task-1", "task-2", "task-3"} {
		require.NoError(t, queue.Enqueue(t.Context(), queuedTask(id)))
	}

	length, err := queue.Len(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	for _, expected := range []string{"task-1", "task-2", "task-3"} {
		task, err := queue.Dequeue(t.Context())
		require.NoError(t, err)
		assert.Equal(t, expected, task.ID)
	}
}

func TestMemoryQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	t.Parallel()

	queue := taskqueue.NewMemoryQueue()
	received := make(chan *models.Task, 1)

	go func() {
		task, err := queue.Dequeue(context.Background())
		if err == nil {
			received <- task
		}
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, queue.Enqueue(t.Context(), queuedTask("task-late")))

	select {
	case task := <-received:
		assert.Equal(t, "task-late", task.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("dequeue never observed the enqueued task")
	}
}

func TestMemoryQueue_DequeueHonorsContext(t *testing.T) {
	t.Parallel()

	queue := taskqueue.NewMemoryQueue()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	task, err := queue.Dequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, task)
}

func TestMemoryQueue_CloseDrainsBufferedTasks(t *testing.T) {
	t.Parallel()

	queue := taskqueue.NewMemoryQueue()

	require.NoError(t, queue.Enqueue(t.Context(), queuedTask("task-1")))
	require.NoError(t, queue.Enqueue(t.Context(), queuedTask("task-2")))
	require.NoError(t, queue.Close())

	// Buffered tasks still come out after close.
	for _, expected := range []string{"task-1", "task-2"} {
		task, err := queue.Dequeue(t.Context())
		require.NoError(t, err)
		assert.Equal(t, expected, task.ID)
	}

	_, err := queue.Dequeue(t.Context())
	assert.ErrorIs(t, err, taskqueue.ErrQueueClosed)

	err = queue.Enqueue(t.Context(), queuedTask("task-3"))
	assert.ErrorIs(t, err, taskqueue.ErrQueueClosed)
}

func TestMemoryQueue_CloseWakesBlockedDequeue(t *testing.T) {
	t.Parallel()

	queue := taskqueue.NewMemoryQueue()
	errs := make(chan error, 1)

	go func() {
		_, err := queue.Dequeue(context.Background())
		errs <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, queue.Close())

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, taskqueue.ErrQueueClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("close never woke the blocked dequeue")
	}
}

func TestMemoryQueue_ConcurrentConsumers(t *testing.T) {
	t.Parallel()

	queue := taskqueue.NewMemoryQueue()
	received := make(chan string, 2)

	for range 2 {
		go func() {
			task, err := queue.Dequeue(context.Background())
			if err == nil {
				received <- task.ID
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, queue.Enqueue(t.Context(), queuedTask("task-1")))
	require.NoError(t, queue.Enqueue(t.Context(), queuedTask("task-2")))

	seen := make(map[string]bool)

	for range 2 {
		select {
		case id := <-received:
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatal("consumers did not drain the queue")
		}
	}

	assert.True(t, seen["task-1"])
	assert.True(t, seen["task-2"])
}
