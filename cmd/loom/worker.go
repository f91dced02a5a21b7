package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/integrity"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/orchestrator"
	"github.com/loomhq/loom/pkg/otelhelper"
	"github.com/loomhq/loom/pkg/recovery"
	"github.com/loomhq/loom/pkg/search"
)

func NewWorkerCommand() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Manage orchestration workers",
		Commands: []*cli.Command{
			NewWorkerRunCommand(),
		},
	}
}

func NewWorkerRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start a worker that executes deferred tasks and sweeps expired deletions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the loom.yaml configuration file",
				Value:   "loom.yaml",
				Sources: cli.EnvVars("LOOM_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (overrides config)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka; overrides config)",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error; overrides config)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			cfg := loadConfig(command)

			err := config.Validate(cfg)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log.Setup(cfg.LogLevel)

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("loom-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing loom worker")

			tracerProvider, err := otelhelper.InitTracer(ctx, "loom-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			registry := cmd.NewRegistry(logger)

			eventBus := cmd.NewEventBus(cfg.EventBus, logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			taskQueue := cmd.NewTaskQueue(ctx, cfg.Queue, logger)
			defer func() {
				if err := taskQueue.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close task queue", "error", err)
				}
			}()

			coordinator := orchestrator.NewCoordinator(
				store,
				eventBus,
				registry,
				search.NewLexicalProvider(logger, store),
				taskQueue,
				orchestrator.Options{
					RetryPolicy:        cfg.RetryPolicy(),
					MaxConcurrentTasks: cfg.Capacity.MaxConcurrentTasks,
				},
				logger,
			)

			checker := integrity.NewChecker(store, logger)
			manager := recovery.NewManager(store, eventBus, checker, checker, cfg.RecoveryWindow(), logger)

			sweeper, err := recovery.NewSweeper(manager, cfg.Recovery.SweepSchedule)
			if err != nil {
				return fmt.Errorf("failed to build retention sweeper: %w", err)
			}

			worker := NewWorkerManager(workerID, coordinator, taskQueue, eventBus, sweeper, logger)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return nil
		},
	}
}

// loadConfig reads the config file and lets flags override individual values.
func loadConfig(command *cli.Command) config.Config {
	cfg := config.LoadOrDefault(command.String("config"))

	if url := command.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}

	if bus := command.String("event-bus"); bus != "" {
		cfg.EventBus = bus
	}

	if level := command.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	return cfg
}
