package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ledgerd/internal/amqp"
)

// Scheduler scans for due recurring templates and fans each one out as
// an individual task. Heavy lifting happens in the worker; the scan
// itself only reads and publishes.
type Scheduler struct {
	store     LedgerStore
	publisher TaskPublisher
}

func NewScheduler(store LedgerStore, publisher TaskPublisher) *Scheduler {
	return &Scheduler{store: store, publisher: publisher}
}

// Scan publishes one task per due template and returns how many were
// published. A failed publish is logged and skipped so one bad template
// never blocks the rest of the scan.
func (s *Scheduler) Scan(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.FindDueRecurringTransactions(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Scanning recurring templates",
		"due", len(due),
		"scan_date", now.Format("2006-01-02"))

	published := 0
	for _, tmpl := range due {
		msg := amqp.NewRecurringTaskMessage(tmpl.ID, tmpl.UserID)
		if err := s.publisher.PublishRecurringTask(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recurring task",
				"transaction_id", tmpl.ID,
				"user_id", tmpl.UserID,
				"error", err)
			continue
		}
		published++
	}

	slog.InfoContext(ctx, "Recurring scan complete",
		"published", published,
		"due", len(due))
	return published, nil
}
