package main

import (
	"context"
	"os"
	"time"

	"treasury/internal/cli"
	"treasury/internal/log"
	"treasury/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentReports)

	logger.Info("Starting report-worker", log.FieldOperation, log.OpStartup)

	ctx := context.Background()
	backend := cli.InitBackend(ctx, logger, cfg)
	publisher := cli.InitPublisher(logger, cfg)
	treasury := services.NewTreasuryService(backend.Store, publisher, nil, logger)

	scheduler, err := services.NewReportScheduler(treasury, cfg.ReportFrequency, cfg.ReportDay, logger)
	if err != nil {
		logger.Error("Invalid report schedule", "error", err, "frequency", cfg.ReportFrequency)
		os.Exit(1)
	}

	interval := cfg.ReportCheckInterval
	logger.Info("Report scheduler configured",
		"frequency", cfg.ReportFrequency,
		"day", cfg.ReportDay,
		"interval", interval)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := treasury.Close(); err != nil {
			logger.Error("Failed to close treasury service", "error", err)
		}
	})

	process := func(now time.Time) {
		saved, err := scheduler.ProcessDueReport(ctx, now)
		if err != nil {
			logger.Error("Report processing failed", "error", err)
			return
		}
		logger.Info("Report check complete",
			"saved", saved,
			"next_check", now.Add(interval).Format("15:04:05"))
	}

	// Run initial check on startup
	process(time.Now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cli.WaitForShutdown(ctx, done)
			logger.Info("Report-worker shutdown complete")
			return
		case now := <-ticker.C:
			process(now)
		}
	}
}
