package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/speclink/internal/mcpserver"
)

// ServeMCP runs the MCP server on stdio. The workspace is validated once and
// then kept current by the file watcher while the server runs.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	eng, err := newEngine(cfg, logger, true)
	if err != nil {
		return err
	}
	defer eng.Close()

	if _, err := eng.svc.ValidateAll(ctx); err != nil {
		logger.Warn("initial validation failed", slog.String("error", err.Error()))
	}

	srv := mcpserver.New(eng.svc, logger, app.version)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.watch(gCtx, cfg, logger); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// ServeStdio returns when stdin closes or on SIGINT/SIGTERM.
		if err := srv.ServeStdio(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}
