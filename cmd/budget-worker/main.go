package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ledgerd/internal/config"
	"ledgerd/internal/log"
	"ledgerd/internal/notify"
	"ledgerd/internal/services"
	"ledgerd/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentBudget,
	})
	log.SetDefault(logger)

	logger.Info("Starting budget-worker")

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

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
		logger.Info("SMTP notifier configured", "host", cfg.SMTPHost)
	} else {
		notifier = notify.NewMemoryNotifier()
		logger.Warn("SMTP not configured, alerts will be recorded but not delivered")
	}

	evaluator := services.NewBudgetEvaluator(repo, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("Budget evaluator configured",
		"interval", cfg.BudgetCheckInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.BudgetCheckInterval)
	defer ticker.Stop()

	runEvaluation(ctx, logger, evaluator, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runEvaluation(ctx, logger, evaluator, now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()
	logger.Info("Budget-worker shutdown complete")
}

func runEvaluation(ctx context.Context, logger *log.Logger, evaluator *services.BudgetEvaluator, now time.Time) {
	alerted, err := evaluator.EvaluateAll(ctx, now)
	if err != nil {
		logger.Error("Budget evaluation failed", log.FieldError, err)
		return
	}
	logger.Info("Budget evaluation finished", "alerted", alerted)
}
