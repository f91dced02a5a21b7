package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:                  "loom",
		Usage:                 "Workflow graph integrity and orchestration engine",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			NewWorkerCommand(),
			NewModelCommand(),
			NewLinkCommand(),
			NewValidateCommand(),
			NewRecoverCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
