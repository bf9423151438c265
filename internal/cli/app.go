package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"mcpql/internal/config"
	"mcpql/internal/datasource"
	"mcpql/internal/datasource/backends"
	"mcpql/internal/service"
	"mcpql/internal/storage"
)

// appContext bundles everything a command needs after wiring.
type appContext struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *datasource.Registry
	query    *service.QueryService
	health   *service.HealthMonitor
	db       *storage.DB // nil when history is disabled
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "mcpql", "config.yaml")
}

// buildApp wires the registry, storage, and query service from config.
// The returned cleanup must run before exit.
func buildApp(opts *RootOptions) (*appContext, func(), error) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	registry := datasource.NewRegistry(logger)
	if err := backends.RegisterAll(registry, cfg, logger); err != nil {
		return nil, nil, fmt.Errorf("register backends: %w", err)
	}

	var db *storage.DB
	var history *storage.HistoryStore
	if cfg.History.Path != "" {
		db, err = storage.New(cfg.History.Path)
		if err != nil {
			// history is best-effort; queries still run without it
			logger.Warn("open history database failed", "error", err)
		} else {
			history = storage.NewHistoryStore(db)
		}
	}

	query := service.NewQueryService(registry, history, cfg.History.Keep, cfg.DefaultRowLimit,
		service.DefaultTargets{
			Kusto:     cfg.Sources.Kusto.Cluster,
			WorkItems: cfg.Sources.WorkItems.OrgURL,
		}, logger)

	health := service.NewHealthMonitor(registry, logger)

	app := &appContext{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		query:    query,
		health:   health,
		db:       db,
	}
	cleanup := func() {
		health.Stop()
		registry.Dispose()
		if db != nil {
			db.Close()
		}
	}
	return app, cleanup, nil
}
