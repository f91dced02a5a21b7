package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/integrity"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/recovery"
)

func NewRecoverCommand() *cli.Command {
	return &cli.Command{
		Name:    "recover",
		Aliases: []string{"rec"},
		Usage:   "Assess and restore soft-deleted workflow models",
		Commands: []*cli.Command{
			NewRecoverAssessCommand(),
			NewRecoverRunCommand(),
		},
	}
}

func NewRecoverAssessCommand() *cli.Command {
	return &cli.Command{
		Name:  "assess",
		Usage: "Check whether a soft-deleted model can be restored",
		Flags: append(recoverFlags(),
			&cli.StringFlag{
				Name:     "requestor",
				Usage:    "User requesting the recovery",
				Required: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With(
				"module", "loom",
				"action", "recover-assess",
			)

			manager, cleanup := buildRecoveryManager(ctx, command, logger)
			defer cleanup()

			assessment, err := manager.AssessRecoveryEligibility(ctx, command.String("model-id"), command.String("requestor"))
			if err != nil {
				return fmt.Errorf("failed to assess recovery eligibility: %w", err)
			}

			fmt.Println("Recovery Assessment:")
			fmt.Println("====================")
			fmt.Printf("\nModel: %s\n", assessment.ModelID)

			if assessment.DeletedAt != nil {
				fmt.Printf("  Deleted at: %s\n", assessment.DeletedAt.Format(time.RFC3339))
			}

			fmt.Printf("  Eligibility: %s\n", assessment.Eligibility)

			for _, reason := range assessment.Reasons {
				fmt.Printf("  - %s\n", reason)
			}

			if assessment.Escalation != nil {
				fmt.Printf("\nEscalation:\n")
				fmt.Printf("  Required role: %s\n", assessment.Escalation.RequiredRole)

				if assessment.Escalation.RequiresJustification {
					fmt.Printf("  Justification required\n")
				}

				if assessment.Escalation.Description != "" {
					fmt.Printf("  %s\n", assessment.Escalation.Description)
				}
			}

			if !assessment.RepairPlan.IsEmpty() {
				fmt.Printf("\nRepair Plan:\n")

				for _, action := range assessment.RepairPlan.Actions {
					fmt.Printf("  - %s %s (%s complexity): %s\n", action.Action, action.Target, action.Complexity, action.Detail)
				}
			}

			if len(assessment.Conflicts) > 0 {
				fmt.Printf("\nVersion Conflicts:\n")

				for _, conflict := range assessment.Conflicts {
					fmt.Printf("  - %s requires %s, restored version would be %s\n",
						conflict.DependentID, conflict.RequiredVersion, conflict.ActualVersion)
				}
			}

			if assessment.Eligibility == models.RecoveryEligible {
				fmt.Println("\n✅ Model is eligible for recovery.")
			} else {
				fmt.Printf("\n❌ Model is not directly recoverable: %s\n", assessment.Eligibility)
			}

			return nil
		},
	}
}

func NewRecoverRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Restore a soft-deleted model; bypasses the eligibility gate, so assess first",
		Flags: append(recoverFlags(),
			&cli.StringFlag{
				Name:     "actor",
				Usage:    "User performing the recovery",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "new-version",
				Usage: "Bump the patch version of the restored model",
			},
			&cli.BoolFlag{
				Name:  "repair-references",
				Usage: "Repair broken references before the model goes live",
			},
			&cli.BoolFlag{
				Name:  "resolve-conflicts",
				Usage: "Re-pin dependents whose version requirements conflict",
			},
			&cli.StringSliceFlag{
				Name:  "components",
				Usage: "Restore only the named components (metadata, permissions, nodes, links)",
			},
			&cli.BoolFlag{
				Name:  "cascade",
				Usage: "Also restore soft-deleted dependents, parent first",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := slog.With(
				"module", "loom",
				"action", "recover-run",
			)

			manager, cleanup := buildRecoveryManager(ctx, command, logger)
			defer cleanup()

			opts := recovery.RecoveryOptions{
				Actor:            command.String("actor"),
				NewVersion:       command.Bool("new-version"),
				RepairReferences: command.Bool("repair-references"),
				ResolveConflicts: command.Bool("resolve-conflicts"),
				Components:       command.StringSlice("components"),
			}

			modelID := command.String("model-id")

			if command.Bool("cascade") {
				cascade, err := manager.CascadeRecovery(ctx, modelID, opts)
				if err != nil {
					return fmt.Errorf("failed to cascade recovery of model %s: %w", modelID, err)
				}

				printCascadeResult(cascade)

				return nil
			}

			result, err := manager.CoordinateModelRecovery(ctx, modelID, opts)
			if err != nil {
				return fmt.Errorf("failed to recover model %s: %w", modelID, err)
			}

			fmt.Println("Recovery Result:")
			fmt.Println("================")
			printRecoveryResult(result)

			return nil
		},
	}
}

// recoverFlags are shared by both recovery subcommands.
func recoverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "Path to the configuration file",
			Value:   "loom.yaml",
			Sources: cli.EnvVars("LOOM_CONFIG"),
		},
		&cli.StringFlag{
			Name:     "model-id",
			Usage:    "ID of the soft-deleted model",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Database connection URL for persistence (overrides config)",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
	}
}

// buildRecoveryManager wires a recovery manager against the configured
// persistence and event bus. The returned cleanup closes both.
func buildRecoveryManager(ctx context.Context, command *cli.Command, logger *slog.Logger) (*recovery.Manager, func()) {
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

	checker := integrity.NewChecker(persistence, logger)
	manager := recovery.NewManager(persistence, eventBus, checker, checker, cfg.RecoveryWindow(), logger)

	return manager, cleanup
}

func printRecoveryResult(result *recovery.RecoveryResult) {
	fmt.Printf("\n✅ Restored: %s (version %s", result.ModelID, result.Version)

	if result.PreviousVersion != "" && result.PreviousVersion != result.Version {
		fmt.Printf(", was %s", result.PreviousVersion)
	}

	fmt.Printf(")\n")

	if len(result.RepairedReferences) > 0 {
		fmt.Printf("  Repaired references: %s\n", strings.Join(result.RepairedReferences, ", "))
	}

	if result.ResolvedConflicts > 0 {
		fmt.Printf("  Resolved version conflicts: %d\n", result.ResolvedConflicts)
	}

	fmt.Printf("  Recovered components: %s\n", strings.Join(result.Recovered, ", "))

	if len(result.Preserved) > 0 {
		fmt.Printf("  Preserved components: %s\n", strings.Join(result.Preserved, ", "))
	}
}

func printCascadeResult(cascade *recovery.CascadeResult) {
	fmt.Println("Cascade Recovery Results:")
	fmt.Println("=========================")

	restored := 0
	failed := 0

	for _, outcome := range cascade.Outcomes {
		if outcome.Error != "" {
			fmt.Printf("\n❌ Failed: %s: %s\n", outcome.ModelID, outcome.Error)

			failed++

			continue
		}

		printRecoveryResult(outcome.Result)

		restored++
	}

	fmt.Printf("\nCascade Summary:\n")
	fmt.Printf("  Restored models: %d\n", restored)
	fmt.Printf("  Failed models: %d\n", failed)
	fmt.Printf("  Recovery order: %s\n", strings.Join(cascade.Order, " -> "))
}
