// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/speclink/internal/api"
	"github.com/starford/speclink/internal/diagstore"
	"github.com/starford/speclink/internal/metrics"
	"github.com/starford/speclink/internal/models"
	"github.com/starford/speclink/internal/query"
	"github.com/starford/speclink/internal/specservice"
	"github.com/starford/speclink/internal/sse"
	"github.com/starford/speclink/internal/storage"
	"github.com/starford/speclink/internal/watcher"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
}

// engine is the validation core shared by every command.
type engine struct {
	store *storage.FS
	svc   *specservice.Service
	db    *diagstore.DB
}

func (e *engine) Close() {
	if e.db != nil {
		_ = e.db.Close()
	}
}

// newEngine opens the workspace and, when withDB is set, the diagnostics store.
// Extra sinks receive every publish and retract after memory and sqlite.
func newEngine(cfg *Config, logger *slog.Logger, withDB bool, opts ...specservice.Option) (*engine, error) {
	if err := os.MkdirAll(cfg.Workspace.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Workspace.Root, storage.WithIgnore(cfg.Workspace.Ignore...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	e := &engine{store: store}

	var qopts []query.Option
	if len(cfg.Workspace.SummaryFiles) > 0 {
		qopts = append(qopts, query.WithSummaryFiles(cfg.Workspace.SummaryFiles))
	}
	q := query.New(store, logger, qopts...)

	if withDB {
		db, err := diagstore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init diagnostics store: %w", err)
		}
		e.db = db
		opts = append([]specservice.Option{specservice.WithRunStore(db), specservice.WithSinks(db)}, opts...)
	}
	e.svc = specservice.New(store, q, logger, opts...)
	return e, nil
}

// watch feeds settled file changes into the service until ctx is cancelled.
func (e *engine) watch(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	return watcher.Watch(ctx, e.store.Root(), e.svc.HandleEvent, logger, watcher.Options{
		Debounce: cfg.Watcher.Debounce,
		Ignore:   e.store.Ignored,
	})
}

// Run starts the HTTP server, the file watcher and the initial validation pass.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("workspace_root", cfg.Workspace.Root),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	m := metrics.New()

	eng, err := newEngine(cfg, logger, true,
		specservice.WithSinks(broker),
		specservice.WithMetrics(m),
		specservice.WithChangeNotifier(func(kind models.ChangeKind, path string) {
			broker.DocumentChanged(kind, path)
		}),
	)
	if err != nil {
		return err
	}
	defer eng.Close()

	// Diagnostics of the last run are reused until the initial pass replaces them.
	if last, err := eng.db.LastRun(); err == nil && last != nil {
		logger.Info("previous validation run",
			slog.String("run_id", last.ID),
			slog.Int("documents", last.Documents),
			slog.Int("diagnostics", last.Diagnostics))
	}
	if n, err := eng.svc.Restore(eng.db); err != nil {
		logger.Warn("restore diagnostics failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("restored diagnostics", slog.Int("documents", n))
	}
	m.ObserveStoredDiagnostics(eng.db.CountByCode)

	apiRouter := api.NewRouter(eng.svc, logger, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", m.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := eng.svc.ValidateAll(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("initial validation failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		if err := eng.watch(gCtx, cfg, logger); err != nil {
			return fmt.Errorf("watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the HTTP server.
var errShutdown = errors.New("shutdown")
