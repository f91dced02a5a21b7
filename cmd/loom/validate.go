package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/validation"
)

var validate *validator.Validate

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate workflow model definitions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the configuration file",
				Value:   "loom.yaml",
				Sources: cli.EnvVars("LOOM_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "file",
				Usage: "Validate a single model definition file instead of the database",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence (overrides config)",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			validate = validator.New(validator.WithRequiredStructEnabled())

			cfg := config.LoadOrDefault(command.String("config"))

			if url := command.String("database-url"); url != "" {
				cfg.DatabaseURL = url
			}

			logger := slog.With(
				"module", "loom",
				"action", "validate",
			)

			rules := validation.NewBusinessRuleValidator(cfg.ResourceLimits(), cfg.Strictness())
			structure := validation.NewConnectionValidator()

			graphs, err := collectGraphs(ctx, logger, command.String("file"), cfg.DatabaseURL)
			if err != nil {
				return err
			}

			logger.Info("Validating models", "models", len(graphs))

			fmt.Println("Model Validation Results:")
			fmt.Println("=========================")

			validModels := 0
			invalidModels := 0
			totalWarnings := 0

			for _, graph := range graphs {
				model := graph.model

				fmt.Printf("\nModel: %s (%s)\n", model.Name, model.ID)

				err = validate.Struct(model)
				if err != nil {
					validationErrors := err.(validator.ValidationErrors)
					fmt.Printf("  ❌ INVALID: %v\n", validationErrors)
					invalidModels++

					continue
				}

				result := structure.ValidateWorkflowStructure(model.Nodes, model.ActionNodes, graph.links)
				result.Merge(rules.ValidateBusinessRules(model, sortedActions(model)))

				for _, message := range result.Errors {
					fmt.Printf("  ❌ INVALID: %s\n", message)
				}

				for _, message := range result.Warnings {
					fmt.Printf("  ⚠️ WARNING: %s\n", message)
				}

				totalWarnings += len(result.Warnings)

				if result.HasErrors() {
					invalidModels++
				} else {
					fmt.Printf("  ✅ VALID\n")
					validModels++
				}
			}

			fmt.Printf("\nValidation Summary:\n")
			fmt.Printf("  Total models: %d\n", validModels+invalidModels)
			fmt.Printf("  Valid models: %d\n", validModels)
			fmt.Printf("  Invalid models: %d\n", invalidModels)
			fmt.Printf("  Warnings: %d\n", totalWarnings)

			if invalidModels > 0 {
				return fmt.Errorf("found %d invalid models", invalidModels)
			}

			fmt.Println("All models are valid! ✅")

			return nil
		},
	}
}

// modelGraph pairs a model with the links touching it, which the structural
// pass needs to judge boundary wiring.
type modelGraph struct {
	model *models.Model
	links []*models.NodeLink
}

func collectGraphs(ctx context.Context, logger *slog.Logger, file, databaseURL string) ([]modelGraph, error) {
	if file != "" {
		model, err := loadModelFile(file)
		if err != nil {
			return nil, err
		}

		return []modelGraph{{model: model}}, nil
	}

	persistence := cmd.NewPersistence(ctx, logger, databaseURL)

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			return
		}
	}()

	modelList, err := persistence.ModelRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch models: %w", err)
	}

	graphs := make([]modelGraph, 0, len(modelList))

	for _, model := range modelList {
		links, err := persistence.LinkRepository().ListByEntity(ctx, model.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch links of model %s: %w", model.ID, err)
		}

		graphs = append(graphs, modelGraph{model: model, links: links})
	}

	return graphs, nil
}

func loadModelFile(path string) (*models.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model models.Model

	err = json.Unmarshal(data, &model)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, err)
	}

	return &model, nil
}

func sortedActions(model *models.Model) []*models.ActionNode {
	actions := make([]*models.ActionNode, 0, len(model.ActionNodes))
	for _, action := range model.ActionNodes {
		actions = append(actions, action)
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].ID < actions[j].ID })

	return actions
}
