package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/services"
)

func NewModelCommand() *cli.Command {
	return &cli.Command{
		Name:    "model",
		Aliases: []string{"m"},
		Usage:   "Manage workflow models",
		Commands: []*cli.Command{
			NewModelListCommand(),
			NewModelShowCommand(),
			NewModelCreateCommand(),
			NewModelPublishCommand(),
			NewModelArchiveCommand(),
			NewModelDeleteCommand(),
		},
	}
}

func NewModelListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List live models",
		Flags: storageFlags(),
		Action: func(ctx context.Context, command *cli.Command) error {
			lifecycle, cleanup := buildLifecycle(ctx, command)
			defer cleanup()

			modelList, err := lifecycle.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}

			if len(modelList) == 0 {
				fmt.Println("No models found.")

				return nil
			}

			for _, model := range modelList {
				fmt.Printf("%s  %-9s  v%-8s  %s\n", model.ID, model.Status, model.Version, model.Name)
			}

			return nil
		},
	}
}

func NewModelShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print a model as JSON",
		Flags: append(storageFlags(), modelIDFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			lifecycle, cleanup := buildLifecycle(ctx, command)
			defer cleanup()

			model, err := lifecycle.FetchByID(ctx, command.String("model-id"))
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(model, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render model: %w", err)
			}

			fmt.Println(string(data))

			return nil
		},
	}
}

func NewModelCreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create a draft model from a definition file",
		Flags: append(storageFlags(),
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path to the model definition JSON file",
				Required: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			model, err := loadModelFile(command.String("file"))
			if err != nil {
				return err
			}

			lifecycle, cleanup := buildLifecycle(ctx, command)
			defer cleanup()

			created, err := lifecycle.Create(ctx, model)
			if err != nil {
				return fmt.Errorf("failed to create model: %w", err)
			}

			fmt.Printf("✅ Created model %s (%s) at version %s\n", created.Name, created.ID, created.Version)

			return nil
		},
	}
}

func NewModelPublishCommand() *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Validate a draft and freeze it as the active version",
		Flags: append(storageFlags(), modelIDFlag(), actorFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			lifecycle, cleanup := buildLifecycle(ctx, command)
			defer cleanup()

			model, err := lifecycle.Publish(ctx, command.String("model-id"), command.String("actor"))
			if err != nil {
				return err
			}

			fmt.Printf("✅ Published model %s at version %s\n", model.Name, model.Version)

			return nil
		},
	}
}

func NewModelArchiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "archive",
		Usage: "Retire a published model",
		Flags: append(storageFlags(), modelIDFlag(), actorFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			lifecycle, cleanup := buildLifecycle(ctx, command)
			defer cleanup()

			model, err := lifecycle.Archive(ctx, command.String("model-id"), command.String("actor"))
			if err != nil {
				return err
			}

			fmt.Printf("✅ Archived model %s\n", model.Name)

			return nil
		},
	}
}

func NewModelDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Soft-delete a model; it stays recoverable inside the retention window",
		Flags: append(storageFlags(), modelIDFlag(), actorFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			lifecycle, cleanup := buildLifecycle(ctx, command)
			defer cleanup()

			modelID := command.String("model-id")

			err := lifecycle.SoftDelete(ctx, modelID, command.String("actor"))
			if err != nil {
				return err
			}

			fmt.Printf("✅ Soft-deleted model %s\n", modelID)

			return nil
		},
	}
}

// storageFlags are shared by every command that opens the store.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the configuration file",
			Value:   "loom.yaml",
			Sources: cli.EnvVars("LOOM_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for persistence (overrides config)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
	}
}

func modelIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "model-id",
		Usage:    "ID of the model",
		Required: true,
	}
}

func actorFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "actor",
		Usage:    "User performing the operation",
		Required: true,
	}
}

// buildLifecycle wires the model lifecycle service against the configured
// persistence and event bus. The returned cleanup closes both.
func buildLifecycle(ctx context.Context, command *cli.Command) (*services.Lifecycle, func()) {
	logger := slog.With("module", "loom", "action", "model")

	cfg := config.LoadOrDefault(command.String("config"))

	if url := command.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}

	persistence := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)
	eventBus := cmd.NewEventBus(cfg.EventBus, logger)

	cleanup := func() {
		if err := eventBus.Close(); err != nil {
			logger.Error("Failed to close event bus", "error", err)
		}

		if err := persistence.Close(ctx); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}

	return services.NewLifecycle(persistence, eventBus, logger), cleanup
}
