package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"treasury/internal/cli"
	apphttp "treasury/internal/http"
	"treasury/internal/log"
	"treasury/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel)

	logger.Info("Starting treasury server", log.FieldOperation, log.OpStartup, "backend", cfg.DataBackend, "broker", cfg.EventBroker)

	ctx := context.Background()
	backend := cli.InitBackend(ctx, logger, cfg)
	publisher := cli.InitPublisher(logger, cfg)
	stats, stopCache := cli.InitStatisticsCache(ctx, logger, cfg)

	treasury := services.NewTreasuryService(backend.Store, publisher, stats, logger)

	srv := apphttp.NewServer(":"+cfg.Port, treasury, apphttp.Options{
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		stopCache()
		if err := treasury.Close(); err != nil {
			logger.Error("Failed to close treasury service", "error", err)
		}
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
