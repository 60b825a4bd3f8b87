// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/treasury, cmd/treasury-worker, and cmd/report-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"treasury/internal/amqp"
	"treasury/internal/backend"
	"treasury/internal/cache"
	"treasury/internal/config"
	"treasury/internal/core"
	"treasury/internal/events"
	"treasury/internal/events/kafka"
	"treasury/internal/log"
	"treasury/internal/sheets"
	gsheets "treasury/internal/sheets/google"
	memsheets "treasury/internal/sheets/memory"
)

// SetupLogger initializes structured logging at the given level.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{Level: log.ParseLevel(level), Component: log.ComponentApp})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.New(log.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the store selected by DATA_BACKEND.
// Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	return result
}

// InitPublisher returns the ledger event publisher selected by EVENT_BROKER.
// Exits the process when the broker cannot be reached.
func InitPublisher(logger *log.Logger, cfg *config.Config) events.Publisher {
	switch cfg.EventBroker {
	case config.BrokerAMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		logger.Info("Publishing ledger events to AMQP", "exchange", cfg.AMQPExchange)
		return client
	case config.BrokerKafka:
		logger.Info("Publishing ledger events to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	default:
		logger.Info("Ledger events disabled", "broker", cfg.EventBroker)
		return events.NopPublisher{}
	}
}

// InitConsumer returns the ledger event consumer selected by EVENT_BROKER, or
// nil when events are disabled. Exits the process when the broker cannot be
// reached.
func InitConsumer(logger *log.Logger, cfg *config.Config) events.Consumer {
	switch cfg.EventBroker {
	case config.BrokerAMQP:
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		return client
	case config.BrokerKafka:
		return kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, logger)
	default:
		return nil
	}
}

// InitStatisticsCache returns the Redis cache when REDIS_URL is set and
// reachable, the in-process LRU otherwise. The returned func releases it.
func InitStatisticsCache(ctx context.Context, logger *log.Logger, cfg *config.Config) (cache.Cache[core.Statistics], func()) {
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache[core.Statistics](ctx, cfg.RedisURL, "treasury:", cfg.StatsCacheTTL, logger)
		if err == nil {
			logger.Info("Statistics cache backed by Redis")
			return rc, func() { _ = rc.Close() }
		}
		logger.Warn("Redis unavailable, continuing with in-process cache", "error", err)
	}

	lru := cache.NewLRUCache[core.Statistics](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	manager := cache.NewManager(logger)
	manager.Register(lru)
	manager.StartCleanup(cfg.StatsCacheTTL)
	return lru, manager.Stop
}

// InitSheetsSink returns the Google Sheets mirror when a spreadsheet is
// configured, an in-memory sink otherwise. Exits the process when the
// Sheets client cannot be built.
func InitSheetsSink(ctx context.Context, logger *log.Logger, cfg *config.Config) sheets.LedgerSink {
	if !cfg.SheetsEnabled() {
		logger.Warn("GOOGLE_SPREADSHEET_ID not set, mirroring the ledger in memory only")
		return memsheets.New()
	}
	client, err := gsheets.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleLedgerSheetName, cfg.GoogleSummarySheetName, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
