package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kazz187/sprintguild/internal/app"
	"github.com/kazz187/sprintguild/internal/config"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	app.SetupLogger(env, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	c, err := app.New(ctx, env)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Serve(ctx); err != nil {
		slog.Error("server error", "error", err)
		c.Close()
		os.Exit(1)
	}
}
