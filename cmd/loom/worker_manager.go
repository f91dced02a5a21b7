package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/orchestrator"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/recovery"
	"github.com/loomhq/loom/pkg/taskqueue"
)

// WorkerManager is the long-running half of the engine: it drains deferred
// tasks into the coordinator and keeps the retention sweeper on schedule.
// Operational events from the bus are surfaced in the log.
type WorkerManager struct {
	id          string
	coordinator *orchestrator.Coordinator
	taskQueue   protocol.TaskQueue
	eventBus    eventbus.EventBus
	sweeper     *recovery.Sweeper
	logger      *slog.Logger
}

func NewWorkerManager(
	id string,
	coordinator *orchestrator.Coordinator,
	taskQueue protocol.TaskQueue,
	eventBus eventbus.EventBus,
	sweeper *recovery.Sweeper,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:          id,
		coordinator: coordinator,
		taskQueue:   taskQueue,
		eventBus:    eventBus,
		sweeper:     sweeper,
		logger:      logger.With("module", "worker_manager"),
	}
}

// Start blocks until the process receives SIGINT or SIGTERM.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.AgentIsolatedEvent, w.handleAgentIsolated)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.RecoveryWindowExpiredEvent, w.handleRecoveryWindowExpired)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	drainCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go w.drainDeferredTasks(drainCtx)

	err = w.sweeper.Start(ctx)
	if err != nil {
		return err
	}
	defer w.sweeper.Stop()

	w.logger.InfoContext(ctx, "Worker started successfully", "worker_id", w.id)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	w.logger.InfoContext(ctx, "Shutting down worker...", "worker_id", w.id)

	return nil
}

// drainDeferredTasks feeds tasks parked by capacity admission back into the
// coordinator as soon as they can be dequeued.
func (w *WorkerManager) drainDeferredTasks(ctx context.Context) {
	for {
		task, err := w.taskQueue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, taskqueue.ErrQueueClosed) {
				return
			}

			w.logger.ErrorContext(ctx, "Failed to dequeue deferred task", "error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}

			continue
		}

		if task == nil {
			continue
		}

		_, err = w.coordinator.ExecuteTask(ctx, task)
		if err != nil {
			w.logger.ErrorContext(ctx, "Deferred task failed", "task_id", task.ID, "error", err)
		}
	}
}

func (w *WorkerManager) handleAgentIsolated(ctx context.Context, event any) error {
	isolated, ok := event.(*events.AgentIsolated)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for AgentIsolated")

		return nil
	}

	w.logger.WarnContext(ctx, "Agent isolated after exhausting retries",
		"agent_id", isolated.AgentID,
		"task_id", isolated.TaskID,
		"attempts", isolated.Attempts,
		"error", isolated.Error)

	return nil
}

func (w *WorkerManager) handleRecoveryWindowExpired(ctx context.Context, event any) error {
	expired, ok := event.(*events.RecoveryWindowExpired)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for RecoveryWindowExpired")

		return nil
	}

	w.logger.WarnContext(ctx, "Model passed its recovery window",
		"model_id", expired.ModelID,
		"deleted_at", expired.DeletedAt,
		"window_days", expired.WindowDays)

	return nil
}
