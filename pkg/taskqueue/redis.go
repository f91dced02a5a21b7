package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

var _ protocol.TaskQueue = (*RedisQueue)(nil)

const (
	connectTimeout = 5 * time.Second
	popTimeout     = 1 * time.Second
)

// RedisQueue backs the deferred-task buffer with a Redis list so queued work
// survives coordinator restarts and is shared across instances.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

func NewRedisQueue(ctx context.Context, addr, password string, db int, key string, logger *slog.Logger) (*RedisQueue, error) {
	if key == "" {
		return nil, errors.New("task queue key is required")
	}

	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	err := client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	queueLogger := logger.With("module", "redis-task-queue", "key", key)
	queueLogger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return &RedisQueue{
		client: client,
		key:    key,
		logger: queueLogger,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
	}

	err = q.client.RPush(ctx, q.key, data).Err()
	if err != nil {
		return fmt.Errorf("failed to push task %s: %w", task.ID, err)
	}

	return nil
}

// Dequeue blocks until a task arrives or the context is done. Undecodable
// entries are logged and skipped rather than wedging the queue.
func (q *RedisQueue) Dequeue(ctx context.Context) (*models.Task, error) {
	for {
		result, err := q.client.BLPop(ctx, popTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("failed to pop task from queue: %w", err)
		}

		if len(result) < 2 {
			continue
		}

		var task models.Task

		err = json.Unmarshal([]byte(result[1]), &task)
		if err != nil {
			q.logger.ErrorContext(ctx, "Discarding undecodable queue entry", "error", err)

			continue
		}

		return &task, nil
	}
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}

	return int(length), nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
