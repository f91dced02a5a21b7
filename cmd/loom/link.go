package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/loomhq/loom/pkg/cmd"
	"github.com/loomhq/loom/pkg/config"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/services"
)

func NewLinkCommand() *cli.Command {
	return &cli.Command{
		Name:    "link",
		Aliases: []string{"l"},
		Usage:   "Manage links between entities",
		Commands: []*cli.Command{
			NewLinkConnectCommand(),
			NewLinkListCommand(),
			NewLinkReweighCommand(),
			NewLinkRemoveCommand(),
		},
	}
}

func NewLinkConnectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Create a link between two entities",
		Flags: append(storageFlags(),
			&cli.StringFlag{
				Name:     "source-entity",
				Usage:    "ID of the source entity",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target-entity",
				Usage:    "ID of the target entity",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "source-feature",
				Usage: "Feature owning the source entity",
				Value: "graph",
			},
			&cli.StringFlag{
				Name:  "target-feature",
				Usage: "Feature owning the target entity",
				Value: "graph",
			},
			&cli.StringFlag{
				Name:     "type",
				Usage:    "Link type (dependency, references, triggers, consumes, produces, ...)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "strength",
				Usage: "Link strength between 0 and 1",
				Value: "0.5",
			},
			&cli.StringFlag{
				Name:  "source-node",
				Usage: "Scope the link to a node inside the source entity",
			},
			&cli.StringFlag{
				Name:  "target-node",
				Usage: "Scope the link to a node inside the target entity",
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			strength, err := parseStrength(command.String("strength"))
			if err != nil {
				return err
			}

			links, cleanup := buildLinks(ctx, command)
			defer cleanup()

			link, err := links.Connect(ctx, services.ConnectRequest{
				SourceFeature:  command.String("source-feature"),
				TargetFeature:  command.String("target-feature"),
				SourceEntityID: command.String("source-entity"),
				TargetEntityID: command.String("target-entity"),
				SourceNodeID:   command.String("source-node"),
				TargetNodeID:   command.String("target-node"),
				Type:           models.LinkType(command.String("type")),
				Strength:       strength,
			})
			if err != nil {
				return err
			}

			fmt.Printf("✅ Linked %s -> %s (%s, strength %.2f)\n",
				link.SourceEntityID, link.TargetEntityID, link.Type, link.Strength)

			return nil
		},
	}
}

func NewLinkListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List the links touching an entity",
		Flags: append(storageFlags(),
			&cli.StringFlag{
				Name:     "entity-id",
				Usage:    "ID of the entity",
				Required: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			links, cleanup := buildLinks(ctx, command)
			defer cleanup()

			linkList, err := links.ListForEntity(ctx, command.String("entity-id"))
			if err != nil {
				return fmt.Errorf("failed to list links: %w", err)
			}

			if len(linkList) == 0 {
				fmt.Println("No links found.")

				return nil
			}

			for _, link := range linkList {
				fmt.Printf("%s  %-11s  %.2f  %s -> %s\n",
					link.ID, link.Type, link.Strength, link.SourceEntityID, link.TargetEntityID)
			}

			return nil
		},
	}
}

func NewLinkReweighCommand() *cli.Command {
	return &cli.Command{
		Name:  "reweigh",
		Usage: "Change the strength of a link",
		Flags: append(storageFlags(),
			linkIDFlag(),
			&cli.StringFlag{
				Name:     "strength",
				Usage:    "New strength between 0 and 1",
				Required: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			strength, err := parseStrength(command.String("strength"))
			if err != nil {
				return err
			}

			links, cleanup := buildLinks(ctx, command)
			defer cleanup()

			link, err := links.Reweigh(ctx, command.String("link-id"), strength)
			if err != nil {
				return err
			}

			fmt.Printf("✅ Link %s strength is now %.2f\n", link.ID, link.Strength)

			return nil
		},
	}
}

func NewLinkRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Delete a link",
		Flags: append(storageFlags(), linkIDFlag()),
		Action: func(ctx context.Context, command *cli.Command) error {
			links, cleanup := buildLinks(ctx, command)
			defer cleanup()

			linkID := command.String("link-id")

			err := links.Remove(ctx, linkID)
			if err != nil {
				return err
			}

			fmt.Printf("✅ Removed link %s\n", linkID)

			return nil
		},
	}
}

func linkIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "link-id",
		Usage:    "ID of the link",
		Required: true,
	}
}

func parseStrength(raw string) (float64, error) {
	strength, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid strength %q: %w", raw, err)
	}

	return strength, nil
}

// buildLinks wires the link service against the configured persistence. Links
// never publish events, so no bus is opened.
func buildLinks(ctx context.Context, command *cli.Command) (*services.Links, func()) {
	logger := slog.With("module", "loom", "action", "link")

	cfg := config.LoadOrDefault(command.String("config"))

	if url := command.String("database-url"); url != "" {
		cfg.DatabaseURL = url
	}

	persistence := cmd.NewPersistence(ctx, logger, cfg.DatabaseURL)

	cleanup := func() {
		if err := persistence.Close(ctx); err != nil {
			logger.Error("Failed to close persistence", "error", err)
		}
	}

	return services.NewLinks(persistence, logger), cleanup
}
