package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ledgerd/internal/core"
	"ledgerd/internal/notify"
	sheetsmem "ledgerd/internal/sheets/memory"
	"ledgerd/internal/storage"
)

func reportFixture() *fakeStore {
	store := newFakeStore()
	store.summaries = []storage.ReportRow{
		{
			User: core.User{ID: "u1", Email: "u1@example.com", Name: "Ada"},
			Summary: core.MonthSummary{
				UserID:   "u1",
				Income:   core.Money{Cents: 300_000},
				Expenses: core.Money{Cents: 120_000},
			},
		},
		{
			User: core.User{ID: "u2", Email: "u2@example.com", Name: "Lin"},
			Summary: core.MonthSummary{
				UserID:   "u2",
				Income:   core.Money{Cents: 250_000},
				Expenses: core.Money{Cents: 260_000},
			},
		},
	}
	return store
}

func TestMonthlyReporterExportsPreviousMonth(t *testing.T) {
	store := reportFixture()
	writer := sheetsmem.New()
	mailer := notify.NewMemoryNotifier()
	rep := NewMonthlyReporter(store, writer, mailer)

	now := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
	n, err := rep.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Fatalf("exported = %d, want 2", n)
	}

	entries := writer.Entries()
	if len(entries) != 2 {
		t.Fatalf("sheet rows = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Summary.Year != 2024 || e.Summary.Month != 2 {
			t.Errorf("entry covers %d-%02d, want 2024-02", e.Summary.Year, e.Summary.Month)
		}
	}

	msgs := mailer.Messages()
	if len(msgs) != 2 {
		t.Fatalf("summary mails = %d, want 2", len(msgs))
	}
	if !strings.Contains(msgs[0].Subject, "February 2024") {
		t.Errorf("subject %q should name the reported month", msgs[0].Subject)
	}
}

func TestMonthlyReporterReportsEachMonthOnce(t *testing.T) {
	store := reportFixture()
	writer := sheetsmem.New()
	rep := NewMonthlyReporter(store, writer, notify.NewMemoryNotifier())

	now := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
	if _, err := rep.Run(context.Background(), now); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Periodic trigger fires again later the same month.
	n, err := rep.Run(context.Background(), now.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n != 0 {
		t.Fatalf("second run exported %d, want 0", n)
	}
	if got := len(writer.Entries()); got != 2 {
		t.Fatalf("sheet rows = %d, want 2 (no duplicates)", got)
	}

	// Next month rolls over and reporting resumes.
	n, err = rep.Run(context.Background(), time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("next month Run: %v", err)
	}
	if n != 2 {
		t.Fatalf("next month exported %d, want 2", n)
	}
}

func TestMonthlyReporterRetriesAfterQueryFailure(t *testing.T) {
	store := reportFixture()
	store.summariesErr = errors.New("database is locked")
	writer := sheetsmem.New()
	rep := NewMonthlyReporter(store, writer, notify.NewMemoryNotifier())

	now := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
	if _, err := rep.Run(context.Background(), now); err == nil {
		t.Fatal("Run should surface the summary query failure")
	}

	store.mu.Lock()
	store.summariesErr = nil
	store.mu.Unlock()

	n, err := rep.Run(context.Background(), now.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("retry Run: %v", err)
	}
	if n != 2 {
		t.Fatalf("retry exported %d, want 2", n)
	}
}

func TestPreviousMonthAcrossYearBoundary(t *testing.T) {
	year, month := previousMonth(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	if year != 2023 || month != time.December {
		t.Fatalf("previousMonth = %d-%s, want 2023-December", year, month)
	}
}
