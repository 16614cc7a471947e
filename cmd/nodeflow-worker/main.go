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

	command := cmd.WorkerCommand()
	command.Name = "nodeflow-worker"
	command.Usage = "Start workers to execute workflows"
	command.EnableShellCompletion = true

	err := command.Run(ctx, os.Args)
	if err != nil {
		panic(err)
	}
}
