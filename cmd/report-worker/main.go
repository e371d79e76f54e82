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
	"ledgerd/internal/sheets"
	sheetsgoogle "ledgerd/internal/sheets/google"
	sheetsmemory "ledgerd/internal/sheets/memory"
	"ledgerd/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: log.ComponentReport,
	})
	log.SetDefault(logger)

	logger.Info("Starting report-worker")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writer sheets.ReportWriter
	if cfg.GoogleSpreadsheetID != "" {
		writer, err = sheetsgoogle.New(ctx, cfg.GoogleSpreadsheetID, cfg.ReportSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets writer", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Google Sheets export configured",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.ReportSheetName)
	} else {
		writer = sheetsmemory.New()
		logger.Warn("Spreadsheet not configured, report rows will be recorded in memory only")
	}

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	} else {
		notifier = notify.NewMemoryNotifier()
		logger.Warn("SMTP not configured, report mails will be recorded but not delivered")
	}

	reporter := services.NewMonthlyReporter(repo, writer, notifier)

	logger.Info("Monthly reporter configured",
		"interval", cfg.ReportCheckInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	ticker := time.NewTicker(cfg.ReportCheckInterval)
	defer ticker.Stop()

	runReport(ctx, logger, reporter, time.Now())

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				runReport(ctx, logger, reporter, now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()
	logger.Info("Report-worker shutdown complete")
}

func runReport(ctx context.Context, logger *log.Logger, reporter *services.MonthlyReporter, now time.Time) {
	exported, err := reporter.Run(ctx, now)
	if err != nil {
		logger.Error("Monthly report run failed", log.FieldError, err)
		return
	}
	if exported > 0 {
		logger.Info("Monthly report exported", "users", exported)
	}
}
