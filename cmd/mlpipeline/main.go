package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"iris-model-pipeline/internal/adapters/primary/cli"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], os.Stdout)
	cancel()
	os.Exit(int(code))
}
