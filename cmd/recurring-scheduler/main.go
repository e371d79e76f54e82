package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerd/internal/amqp"
	"ledgerd/internal/config"
	"ledgerd/internal/log"
	"ledgerd/internal/services"
	"ledgerd/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentScheduler,
	})
	log.SetDefault(logger)

	logger.Info("Starting recurring-scheduler")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	scheduler := services.NewScheduler(repo, amqpClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring scheduler configured",
		"interval", cfg.ScanInterval,
		"sqlite_db", cfg.SQLiteDBPath,
		"queue", cfg.AMQPQueue)

	ticker := time.NewTicker(cfg.ScanInterval)
	defer ticker.Stop()

	// Run an initial scan on startup so a restart never delays due work
	// by a full interval.
	runScan(ctx, logger, scheduler, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runScan(ctx, logger, scheduler, now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()
	logger.Info("Recurring-scheduler shutdown complete")
}

func runScan(ctx context.Context, logger *log.Logger, scheduler *services.Scheduler, now time.Time) {
	published, err := scheduler.Scan(ctx, now)
	if err != nil {
		logger.Error("Recurring scan failed", log.FieldError, err)
		return
	}
	logger.Info("Recurring scan finished", "published", published)
}
