// Package services holds the scheduling and processing logic for
// recurring transactions, budget alerts, and monthly reports. Each
// service talks to storage and messaging through narrow ports so the
// logic is testable without SQLite or RabbitMQ.
package services

import (
	"context"
	"time"

	"ledgerd/internal/amqp"
	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// LedgerStore is the persistence surface the scheduler, processor, and
// budget evaluator depend on. *storage.SQLiteRepository satisfies it.
type LedgerStore interface {
	FindDueRecurringTransactions(ctx context.Context, now time.Time) ([]core.Transaction, error)
	GetTransactionWithAccount(ctx context.Context, id, userID string) (core.Transaction, core.Account, error)
	ApplyRecurringOccurrence(ctx context.Context, template, occurrence core.Transaction, now time.Time) error
	FindBudgetsWithDefaultAccounts(ctx context.Context) ([]storage.BudgetWithAccount, error)
	UpdateBudgetAlertTimestamp(ctx context.Context, budgetID string, sentAt time.Time) error
	SumExpenses(ctx context.Context, accountID string, from, to time.Time) (core.Money, error)
}

// ReportStore provides the per-user monthly aggregates for report export.
type ReportStore interface {
	MonthSummaries(ctx context.Context, year int, month time.Month) ([]storage.ReportRow, error)
}

// TaskPublisher emits processing tasks for due recurring templates.
// *amqp.Client satisfies it.
type TaskPublisher interface {
	PublishRecurringTask(ctx context.Context, msg *amqp.RecurringTaskMessage) error
}
