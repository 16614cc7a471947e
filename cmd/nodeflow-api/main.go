package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/nodeflow/pkg/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command := cmd.APICommand()
	command.Name = "nodeflow-api"
	command.Usage = "Create and manage workflows"
	command.EnableShellCompletion = true

	err := command.Run(ctx, os.Args)
	if err != nil {
		panic(err)
	}
}
