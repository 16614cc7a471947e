// Command nodeflow runs the API or a worker as subcommands of one binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/nodeflow/pkg/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := &cli.Command{
		Name:                  "nodeflow",
		Usage:                 "Build and run workflows",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			cmd.APICommand(),
			cmd.WorkerCommand(),
		},
	}

	err := command.Run(ctx, os.Args)
	if err != nil {
		panic(err)
	}
}
