// Package main is the entrypoint for the TenderLens API server.
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

	"github.com/tenderlens/tenderlens/internal/ai"
	"github.com/tenderlens/tenderlens/internal/api"
	"github.com/tenderlens/tenderlens/internal/api/handler"
	mw "github.com/tenderlens/tenderlens/internal/api/middleware"
	"github.com/tenderlens/tenderlens/internal/cache"
	"github.com/tenderlens/tenderlens/internal/config"
	"github.com/tenderlens/tenderlens/internal/crm"
	"github.com/tenderlens/tenderlens/internal/extract"
	"github.com/tenderlens/tenderlens/internal/pipeline"
	"github.com/tenderlens/tenderlens/internal/scoring"
	"github.com/tenderlens/tenderlens/internal/store"
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
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

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

	// 5. Create AI provider
	aiProvider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", aiProvider.Name(), "model", aiProvider.Model())

	// 6. Create store, CRM authority, engines, board
	pgStore := store.NewPostgresStore(pool)
	authority := crm.NewHTTPClient(cfg.CRM.BaseURL, cfg.CRM.APIKey, cfg.CRM.Timeout)

	extractEngine := extract.NewEngine(aiProvider, pgStore, redisCache, cfg.AI.InferenceTimeout)
	scoringEngine := scoring.NewEngine(aiProvider, pgStore, redisCache, cfg.AI.InferenceTimeout, cfg.Scoring)

	board := pipeline.NewBoard(pgStore, authority)
	defaultUser, err := pgStore.GetDefaultUser(ctx)
	if err != nil {
		return fmt.Errorf("load default user: %w", err)
	}
	if err := board.Hydrate(ctx, defaultUser.ID); err != nil {
		return fmt.Errorf("hydrate board: %w", err)
	}
	slog.Info("pipeline board hydrated")

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler:       handler.NewHealthHandler(pgStore, redisCache, authority),
		ExtractHandler:      handler.NewExtractHandler(extractEngine),
		AnalyzeHandler:      handler.NewAnalyzeHandler(scoringEngine, pgStore, board),
		GetAnalysisHandler:  handler.NewGetAnalysisHandler(pgStore, redisCache),
		CreateTenderHandler: handler.NewCreateTenderHandler(pgStore, board),
		ListTendersHandler:  handler.NewListTendersHandler(pgStore),
		GetTenderHandler:    handler.NewGetTenderHandler(pgStore),
		MoveTenderHandler:   handler.NewMoveTenderHandler(board, pgStore),
		CreateKeyHandler:    handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:     handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:    handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
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
