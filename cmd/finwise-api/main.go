package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finwise/internal/api"
	"finwise/internal/auth"
	"finwise/internal/coach"
	"finwise/internal/config"
	"finwise/internal/finance"
	"finwise/internal/storage"
	"finwise/internal/storage/postgres"
	"finwise/internal/storage/sqlite"
	"finwise/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env", "err", err)
		os.Exit(1)
	}
	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	shutdownTracing, err := telemetry.Setup(ctx, "finwise-api", cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		logger.Error("telemetry setup failed", "err", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("storage open failed", "storage", cfg.Storage, "err", err)
		os.Exit(1)
	}
	defer kv.Close()

	authSvc, err := auth.NewService(kv, cfg.JWTSecret, auth.Options{TTL: cfg.TokenTTL})
	if err != nil {
		logger.Error("auth init failed", "err", err)
		os.Exit(1)
	}
	remote := coach.NewRemote(coach.RemoteConfig{
		APIKey:  cfg.OpenAIKey,
		Model:   cfg.CoachModel,
		URL:     cfg.CoachURL,
		Timeout: cfg.CoachTimeout,
	})
	if !remote.Configured() {
		logger.Warn("OPENAI_API_KEY not set, coach falls back to canned replies")
	}
	hub := finance.NewHub(kv, logger, finance.Options{
		Responder:      coach.NewFallback(remote, logger),
		LessonPassMark: cfg.Tuning.Lessons.PassMark,
	})

	server := api.New(cfg, logger, authSvc, hub, remote)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		server.Close()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("finwise api listening", "addr", cfg.Addr, "storage", cfg.Storage)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.APIConfig) (storage.Store, error) {
	switch cfg.Storage {
	case "sqlite":
		return sqlite.Open(ctx, cfg.SQLitePath)
	case "postgres":
		return postgres.Open(ctx, cfg.DatabaseURL)
	case "memory":
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
