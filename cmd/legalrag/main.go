package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"legalrag/internal/cli"
	"legalrag/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		logger.Error("%v", err)
		os.Exit(cli.ExitCode(err))
	}
}
