// Package main is the entrypoint for the story engine: HTTP surface,
// pipeline workers and the maintenance schedule in one binary.
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

	"github.com/tellatale/engine/internal/api"
	"github.com/tellatale/engine/internal/api/handler"
	"github.com/tellatale/engine/internal/blob"
	"github.com/tellatale/engine/internal/bus"
	"github.com/tellatale/engine/internal/catalog"
	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/pipeline"
	"github.com/tellatale/engine/internal/provider/eleven"
	"github.com/tellatale/engine/internal/provider/openai"
	"github.com/tellatale/engine/internal/store"
	"github.com/tellatale/engine/internal/sweeper"
	"github.com/tellatale/engine/internal/worker"
	"github.com/tellatale/engine/internal/ws"
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
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "storage_mode", cfg.Storage.Mode, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	pgStore := store.NewPostgresStore(pool)

	progressBus, err := bus.NewRedisBus(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create progress bus: %w", err)
	}
	defer progressBus.Close()
	if err := progressBus.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	blobStore, err := newBlobStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("create artifact store: %w", err)
	}
	slog.Info("artifact store ready", "mode", cfg.Storage.Mode)

	cat, err := catalog.LoadFile(cfg.Pipeline.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	queue, err := worker.NewClient(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create task client: %w", err)
	}
	defer queue.Close()

	engine := pipeline.New(cfg, pgStore, blobStore, progressBus,
		openai.NewTextClient(cfg.OpenAI),
		openai.NewImageClient(cfg.OpenAI),
		eleven.NewSpeechClient(cfg.Eleven),
		queue, cat)

	workers, err := worker.NewServer(cfg.Redis.URL, cfg.Pipeline.WorkerConcurrency,
		engine, sweeper.New(pgStore, blobStore))
	if err != nil {
		return fmt.Errorf("create worker server: %w", err)
	}
	if err := workers.Start(); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer workers.Shutdown()
	slog.Info("workers started", "concurrency", cfg.Pipeline.WorkerConcurrency)

	broker := ws.NewBroker(pgStore, progressBus)
	router := api.NewRouter(api.Dependencies{
		HealthHandler: handler.Health(map[string]handler.Pinger{
			"database": pgStore,
			"redis":    progressBus,
			"storage":  blobStore,
		}),
		StoryStream: broker.ServeStory,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Long-lived websocket streams exempt themselves via hijack; this
		// bounds the JSON endpoints.
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	switch cfg.Mode {
	case config.StorageMinio:
		return blob.NewMinioStore(ctx, cfg.Minio)
	default:
		return blob.NewLocalStore(cfg.Local)
	}
}
