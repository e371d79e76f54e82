package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledgerd/internal/notify"
	"ledgerd/internal/sheets"
)

// MonthlyReporter exports last month's per-user summaries once the
// calendar rolls over: one spreadsheet row and one summary mail per
// user. It remembers the last month it reported so the periodic trigger
// can fire as often as it likes.
type MonthlyReporter struct {
	store    ReportStore
	writer   sheets.ReportWriter
	notifier notify.Notifier

	mu           sync.Mutex
	lastYear     int
	lastMonth    time.Month
	everReported bool
}

func NewMonthlyReporter(store ReportStore, writer sheets.ReportWriter, notifier notify.Notifier) *MonthlyReporter {
	return &MonthlyReporter{store: store, writer: writer, notifier: notifier}
}

// Run reports the month preceding now, unless it already did. Returns
// how many users were exported. A failing user is logged and skipped.
func (r *MonthlyReporter) Run(ctx context.Context, now time.Time) (int, error) {
	year, month := previousMonth(now)

	if !r.claimMonth(year, month) {
		return 0, nil
	}

	rows, err := r.store.MonthSummaries(ctx, year, month)
	if err != nil {
		r.releaseMonth()
		return 0, fmt.Errorf("month summaries for %d-%02d: %w", year, month, err)
	}

	slog.InfoContext(ctx, "Exporting monthly report",
		"year", year, "month", int(month), "users", len(rows))

	exported := 0
	for _, row := range rows {
		entry := sheets.ReportEntry{
			UserEmail: row.User.Email,
			UserName:  row.User.Name,
			Summary:   row.Summary,
		}
		if err := r.writer.AppendReportRow(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to export report row",
				"user_id", row.User.ID, "error", err)
			continue
		}

		subject := fmt.Sprintf("Your %s %d summary", month, year)
		body := fmt.Sprintf(
			"Hi %s,\n\nYour summary for %s %d:\n  Income:   %s\n  Expenses: %s\n  Net:      %s\n",
			row.User.Name, month, year,
			row.Summary.Income, row.Summary.Expenses, row.Summary.Net())
		if err := r.notifier.Send(ctx, row.User.Email, subject, body); err != nil {
			slog.ErrorContext(ctx, "Failed to mail report summary",
				"user_id", row.User.ID, "error", err)
		}
		exported++
	}

	slog.InfoContext(ctx, "Monthly report complete",
		"year", year, "month", int(month), "exported", exported)
	return exported, nil
}

// claimMonth marks (year, month) as reported and reports whether it was
// unclaimed. Claiming before the export keeps a concurrent trigger from
// producing duplicate rows.
func (r *MonthlyReporter) claimMonth(year int, month time.Month) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.everReported && r.lastYear == year && r.lastMonth == month {
		return false
	}
	r.lastYear = year
	r.lastMonth = month
	r.everReported = true
	return true
}

// releaseMonth undoes a claim after a failed summary query so the next
// trigger retries the month.
func (r *MonthlyReporter) releaseMonth() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.everReported = false
}

// previousMonth returns the calendar month before the one containing now.
func previousMonth(now time.Time) (int, time.Month) {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prev := firstOfMonth.AddDate(0, 0, -1)
	return prev.Year(), prev.Month()
}
