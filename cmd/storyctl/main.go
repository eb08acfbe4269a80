// Command storyctl resolves, inspects and invalidates stories from the
// command line using the same environment configuration as the server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/tendant/simple-story/pkg/simplestory/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	build := func(ctx context.Context) (*config.Stack, error) {
		cfg, err := config.Load(config.FromEnv())
		if err != nil {
			return nil, err
		}
		return cfg.Build(ctx, config.WithLogger(logger))
	}

	if err := newRootCmd(build).Execute(); err != nil {
		os.Exit(1)
	}
}
