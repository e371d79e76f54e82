package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerd/internal/amqp"
	"ledgerd/internal/config"
	"ledgerd/internal/log"
	"ledgerd/internal/ratelimit"
	"ledgerd/internal/services"
	"ledgerd/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentProcessor,
	})
	log.SetDefault(logger)

	logger.Info("Starting recurring-worker")

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

	limiter := ratelimit.NewLimiter(5 * time.Minute)
	defer limiter.Stop()

	processor := services.NewProcessor(repo, limiter,
		cfg.UserTaskLimit, cfg.UserTaskWindow, cfg.UnitTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Recurring worker configured",
		"sqlite_db", cfg.SQLiteDBPath,
		"queue", cfg.AMQPQueue,
		"user_task_limit", cfg.UserTaskLimit,
		"user_task_window", cfg.UserTaskWindow)

	consumeDone := make(chan error, 1)
	go func() {
		consumeDone <- amqpClient.ConsumeRecurringTasks(ctx, processor.Process)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
		<-consumeDone
	case err := <-consumeDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Task consumption stopped", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Recurring-worker shutdown complete")
}
