package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ledgerd/internal/amqp"
	"ledgerd/internal/core"
	"ledgerd/internal/ratelimit"
)

// recurringTag marks generated occurrences so they are distinguishable
// from manually entered transactions in the ledger.
const recurringTag = " (Recurring)"

// Processor turns one recurring task into a ledger occurrence. It
// re-fetches the template and re-evaluates due-ness at execution time,
// so stale or redelivered tasks degrade to no-ops instead of duplicate
// occurrences.
type Processor struct {
	store       LedgerStore
	limiter     *ratelimit.Limiter
	taskLimit   int
	taskWindow  time.Duration
	unitTimeout time.Duration

	now func() time.Time
}

func NewProcessor(store LedgerStore, limiter *ratelimit.Limiter, taskLimit int, taskWindow, unitTimeout time.Duration) *Processor {
	return &Processor{
		store:       store,
		limiter:     limiter,
		taskLimit:   taskLimit,
		taskWindow:  taskWindow,
		unitTimeout: unitTimeout,
		now:         time.Now,
	}
}

// Process handles one task. Outcomes:
//   - nil: the occurrence was recorded, or the task was safely skipped
//     (template gone, no longer due, or claimed by a concurrent worker).
//   - *amqp.DeferredError: the user's throttle rejected the task; it
//     should be redelivered after the window resets.
//   - other error: transient failure, safe to retry.
func (p *Processor) Process(ctx context.Context, msg *amqp.RecurringTaskMessage) error {
	if res := p.limiter.Check("user:"+msg.UserID, p.taskLimit, p.taskWindow); !res.Allowed {
		return &amqp.DeferredError{RetryAfter: res.RetryAfter}
	}

	template, account, err := p.store.GetTransactionWithAccount(ctx, msg.TransactionID, msg.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Template deleted between scan and processing. Drop the task.
			slog.WarnContext(ctx, "Recurring template vanished, skipping task",
				"transaction_id", msg.TransactionID,
				"user_id", msg.UserID)
			return nil
		}
		return fmt.Errorf("fetch template %s: %w", msg.TransactionID, err)
	}

	now := p.now()
	if !template.IsRecurring || !template.IsDue(now) {
		slog.InfoContext(ctx, "Template not due, skipping task",
			"transaction_id", template.ID,
			"user_id", template.UserID)
		return nil
	}

	occurrence := core.Transaction{
		ID:          uuid.NewString(),
		UserID:      template.UserID,
		AccountID:   account.ID,
		Kind:        template.Kind,
		Amount:      template.Amount,
		OccurredAt:  now,
		Category:    template.Category,
		Description: template.Description + recurringTag,
		Status:      core.StatusCompleted,
	}

	unitCtx, cancel := context.WithTimeout(ctx, p.unitTimeout)
	defer cancel()

	if err := p.store.ApplyRecurringOccurrence(unitCtx, template, occurrence, now); err != nil {
		if errors.Is(err, core.ErrAlreadyProcessed) {
			slog.InfoContext(ctx, "Template claimed by concurrent worker, skipping task",
				"transaction_id", template.ID,
				"user_id", template.UserID)
			return nil
		}
		return fmt.Errorf("apply occurrence for template %s: %w", template.ID, err)
	}

	slog.InfoContext(ctx, "Recorded recurring occurrence",
		"transaction_id", template.ID,
		"occurrence_id", occurrence.ID,
		"user_id", template.UserID,
		"amount_cents", occurrence.Amount.Cents,
		"kind", occurrence.Kind)
	return nil
}
