// Package main is the entrypoint for the ProteinDock API server.
package main

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

	"github.com/YashJadhav21/ProteinDock/internal/api"
	"github.com/YashJadhav21/ProteinDock/internal/api/handler"
	mw "github.com/YashJadhav21/ProteinDock/internal/api/middleware"
	"github.com/YashJadhav21/ProteinDock/internal/api/response"
	"github.com/YashJadhav21/ProteinDock/internal/cache"
	"github.com/YashJadhav21/ProteinDock/internal/config"
	"github.com/YashJadhav21/ProteinDock/internal/docking"
	"github.com/YashJadhav21/ProteinDock/internal/docking/engine"
	"github.com/YashJadhav21/ProteinDock/internal/pdb"
	"github.com/YashJadhav21/ProteinDock/internal/store"
	"github.com/YashJadhav21/ProteinDock/internal/viewer"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "engine_script", cfg.Engine.Script)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Probe the docking engine. An unavailable engine is not fatal: jobs
	// fall back to simulated results until a Refresh finds it healthy.
	if err := os.MkdirAll(cfg.Engine.WorkRoot, 0o755); err != nil {
		return fmt.Errorf("create work root: %w", err)
	}
	vinaRunner := engine.NewVinaRunner(cfg.Engine)
	availability := engine.NewAvailability(ctx, vinaRunner)

	// 6. Create store and services
	pgStore := store.NewPostgresStore(pool)
	dockingSvc := docking.NewService(pgStore, redisCache, availability,
		vinaRunner, engine.NewSimulatedRunner(), cfg.Engine)
	rcsbClient := pdb.NewHTTPClient(cfg.RCSB.BaseURL, cfg.RCSB.Timeout)

	// 7. Start the viewer sweeper
	sweeper := viewer.NewSweeper(pgStore, cfg.Engine.SweepInterval)
	go sweeper.Run(ctx)

	// 8. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, redisCache, availability),

		SubmitDockHandler: handler.NewSubmitDockHandler(dockingSvc),
		GetJobHandler:     handler.NewGetJobHandler(pgStore),
		ListJobsHandler:   handler.NewListJobsHandler(pgStore),
		ViewerHandler:     handler.NewViewerHandler(pgStore),

		CreateProteinHandler: handler.NewCreateProteinHandler(pgStore, redisCache, rcsbClient),
		GetProteinHandler:    handler.NewGetProteinHandler(pgStore),
		ListProteinsHandler:  handler.NewListProteinsHandler(pgStore),
		GridBoxHandler:       handler.NewGridBoxHandler(pgStore),

		CreateLigandHandler: handler.NewCreateLigandHandler(pgStore),
		GetLigandHandler:    handler.NewGetLigandHandler(pgStore),
		ListLigandsHandler:  handler.NewListLigandsHandler(pgStore),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity and reports engine
// availability. A missing engine degrades (simulated results) but does not
// fail the health check.
func healthHandler(s store.Store, c cache.Cache, avail *engine.Availability) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
			"engine":   "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}
		if !avail.Available() {
			checks["engine"] = "simulated"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
