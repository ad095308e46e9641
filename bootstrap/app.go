package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"argus/api"
	"argus/config"
	"argus/detect"
	"argus/storage"

	"go.uber.org/zap"
)

// shutdownTimeout bounds graceful API shutdown.
const shutdownTimeout = 10 * time.Second

// App wires configuration, logging, rule storage and the API server.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	Store     storage.RuleStore
	Cache     *detect.PredicateCache
	APIServer *api.API

	serverErrCh chan error
}

// NewApp loads configuration and initializes all components. configPath may
// be empty to use the default search paths.
func NewApp(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, sugar, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	sugar.Infow("Starting up", "rules_backend", cfg.Rules.Backend)

	store, err := OpenRuleStore(cfg, sugar)
	if err != nil {
		return nil, err
	}

	cache, err := detect.NewPredicateCache(cfg.Matcher.PredicateCacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create predicate cache: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Sugar:       sugar,
		Store:       store,
		Cache:       cache,
		APIServer:   api.NewAPI(store, cache, cfg, sugar),
		serverErrCh: make(chan error, 1),
	}, nil
}

// OpenRuleStore opens the rule store selected by the configuration.
func OpenRuleStore(cfg *config.Config, sugar *zap.SugaredLogger) (storage.RuleStore, error) {
	switch cfg.Rules.Backend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteRuleStore(cfg.DataPaths.SQLitePath, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite rule store: %w", err)
		}
		return store, nil
	case config.BackendFile:
		store, err := storage.NewFileRuleStore(cfg.DataPaths.RulesDir, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to open file rule store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown rules backend %q", cfg.Rules.Backend)
	}
}

// Start launches the API server.
func (a *App) Start() {
	go func() {
		if err := a.APIServer.Start(); err != nil && err != http.ErrServerClosed {
			a.serverErrCh <- err
		}
	}()
}

// WaitForShutdown blocks until a shutdown signal arrives or the server fails.
func (a *App) WaitForShutdown() error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-c:
		a.Sugar.Infow("Received shutdown signal", "signal", sig.String())
		return nil
	case err := <-a.serverErrCh:
		return fmt.Errorf("API server failed: %w", err)
	}
}

// Shutdown stops the API server and closes the rule store.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.APIServer.Stop(ctx); err != nil {
		a.Sugar.Errorw("Failed to shut down API server gracefully", "error", err)
	}

	if err := a.Store.Close(); err != nil {
		a.Sugar.Errorw("Failed to close rule store", "error", err)
	}

	_ = a.Logger.Sync()
}
