package cli

import (
	"log/slog"

	"github.com/eshaffer321/discount-allocator/internal/application/allocation"
	"github.com/eshaffer321/discount-allocator/internal/application/backfill"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/config"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/logging"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/metrics"
	"github.com/eshaffer321/discount-allocator/internal/infrastructure/storage"
)

// App wires storage, metrics and the two engine entry points from config.
type App struct {
	Store        *storage.Storage
	Metrics      *metrics.Registry
	Orchestrator *allocation.Orchestrator
	Runner       *backfill.Runner
	Logger       *slog.Logger
}

// NewApp opens the database and builds the engine. Close releases it.
func NewApp(cfg *config.Config, system string, verbose bool) (*App, error) {
	loggingCfg := cfg.Observability.Logging
	if verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, system)

	backfillCfg, err := backfill.FromConfig(cfg.Backfill)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}

	var reg *metrics.Registry
	if cfg.Observability.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	return &App{
		Store:        store,
		Metrics:      reg,
		Orchestrator: allocation.NewOrchestrator(store, store, reg, logging.NewLoggerWithSystem(loggingCfg, "allocation")),
		Runner:       backfill.NewRunner(store, backfillCfg, reg, logging.NewLoggerWithSystem(loggingCfg, "backfill")),
		Logger:       logger,
	}, nil
}

// Close closes the database.
func (a *App) Close() error {
	return a.Store.Close()
}
