package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/taskqueue"
)

func NewTaskQueue(ctx context.Context, cfg config.QueueConfig, logger *slog.Logger) protocol.TaskQueue {
	switch cfg.Provider {
	case "redis":
		queue, err := taskqueue.NewRedisQueue(ctx, cfg.Addr, cfg.Password, cfg.DB, cfg.Key, logger)
		if err != nil {
			panic(fmt.Errorf("failed to create Redis task queue: %w", err))
		}

		return queue
	default:
		return taskqueue.NewMemoryQueue()
	}
}
