package main

import (
	"context"
	"errors"
	"os"
	"time"

	"treasury/internal/cli"
	"treasury/internal/log"
	"treasury/internal/services"
	"treasury/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	logger.Info("Starting treasury-worker", log.FieldOperation, log.OpStartup, "broker", cfg.EventBroker, "sync_interval", cfg.SyncInterval)

	backend := cli.InitBackend(context.Background(), logger, cfg)
	treasury := services.NewTreasuryService(backend.Store, nil, nil, logger)
	sink := cli.InitSheetsSink(context.Background(), logger, cfg)
	consumer := cli.InitConsumer(logger, cfg)
	if consumer == nil {
		logger.Info("No event broker configured, relying on periodic full sync")
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if consumer != nil {
			if err := consumer.Close(); err != nil {
				logger.Error("Failed to close consumer", "error", err)
			}
		}
		if err := backend.Cleanup(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	})

	syncWorker := worker.NewSyncWorker(treasury, sink, logger)
	if err := syncWorker.Run(ctx, consumer, cfg.SyncInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
