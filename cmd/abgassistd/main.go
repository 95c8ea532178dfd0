package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/acidbase/abgassist/internal/analysis"
	"github.com/acidbase/abgassist/internal/common"
	"github.com/acidbase/abgassist/internal/export"
	"github.com/acidbase/abgassist/internal/jobs"
	"github.com/acidbase/abgassist/internal/llm/openai"
	"github.com/acidbase/abgassist/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; real deployments set the environment.
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("job store unavailable", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("job store close failed", "error", err)
		}
	}()

	completer := openai.NewClient(openai.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	}, logger)

	svc := analysis.NewService(completer, logger)
	runner := jobs.NewRunner(store, svc, logger,
		jobs.WithWorkers(cfg.Jobs.Workers),
		jobs.WithQueueSize(cfg.Jobs.QueueSize),
		jobs.WithJobTimeout(cfg.Jobs.JobTimeout),
	)
	exporter := export.NewService(store, logger)

	handler := server.NewHandler(svc, runner, exporter, logger)
	router := server.NewRouter(handler, cfg.Server.AllowedOrigins, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("http.serving", "addr", cfg.Server.Addr, "model", cfg.LLM.Model)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", "error", err)
	}
	runner.Shutdown(shutdownCtx)
	logger.Info("stopped")
}

func openStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (jobs.Store, error) {
	if cfg.Store.PostgresDSN != "" {
		return jobs.OpenPostgres(ctx, cfg.Store, logger)
	}
	logger.Info("jobstore.sqlite", "path", cfg.Store.SQLitePath)
	return jobs.OpenSQLite(cfg.Store.SQLitePath)
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
