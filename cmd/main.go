// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/Shivanand-hulikatti/booth-access/internal/cache"
	"github.com/Shivanand-hulikatti/booth-access/internal/config"
	"github.com/Shivanand-hulikatti/booth-access/internal/database"
	"github.com/Shivanand-hulikatti/booth-access/internal/handler"
	"github.com/Shivanand-hulikatti/booth-access/internal/model"
	"github.com/Shivanand-hulikatti/booth-access/internal/repository"
	"github.com/Shivanand-hulikatti/booth-access/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Configuration and logging ──────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	setupLogger(cfg.Environment)

	// ── 2. Storage ────────────────────────────────────────────────────────
	var (
		store        repository.Store
		participants repository.ParticipantCounter
	)
	switch cfg.Backend {
	case config.BackendMemory:
		store = repository.NewMemoryStore()
		participants = repository.NewMemoryParticipants()
		slog.Warn("using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		store = repository.NewPostgresStore(pool, cfg.Database.Timeout)
		participants = repository.NewPostgresParticipants(pool, cfg.Database.Timeout)
		slog.Info("connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	}

	opts := service.Options{
		SessionTTL:           cfg.SessionTTL,
		RateLimitWindow:      cfg.RateLimitWindow,
		RateLimitMaxFailures: cfg.RateLimitMaxFailures,
		CodeAttempts:         cfg.CodeMaxAttempts,
		StatsLocation:        cfg.StatsLocation(),
	}
	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rdb.Close()
		opts.FailureCounter = cache.NewFailureWindow(rdb, cfg.RateLimitWindow)
		slog.Info("failed code attempts counted in redis")
	}

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	core := service.New(store, participants, opts)

	if cfg.Backend == config.BackendMemory {
		if err := seedDemoBooth(ctx, store, core.Admin, cfg.DefaultMaxOperators); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	router := handler.NewRouter(handler.RouterConfig{
		Access:            core.Access,
		Admin:             core.Admin,
		AdminKey:          cfg.AdminKey,
		CORSOrigins:       cfg.CORSOrigins,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RequestBurst:      cfg.RequestBurst,
		EnableMetrics:     cfg.EnableMetrics,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

func setupLogger(environment string) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	if environment == "production" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

// seedDemoBooth gives an empty in-memory store one booth with a code so the
// operator flow can be exercised locally.
func seedDemoBooth(ctx context.Context, store repository.Store, admin *service.AdminService, maxOperators int) error {
	booth := &model.Booth{
		ID:           "demo-booth",
		Name:         "Demo Booth",
		IsActive:     true,
		MaxOperators: maxOperators,
	}
	if err := store.CreateBooth(ctx, booth); err != nil {
		return err
	}
	code, _, err := admin.AssignCode(ctx, booth.ID, 0)
	if err != nil {
		return err
	}
	slog.Info("demo booth ready", "booth_id", booth.ID, "code", code, "max_operators", maxOperators)
	return nil
}
