package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/mebeatme/internal/loadgen"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := loadgen.NewCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
