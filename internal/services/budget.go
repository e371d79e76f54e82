package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerd/internal/core"
	"ledgerd/internal/notify"
	"ledgerd/internal/storage"
)

// alertThresholdPercent is the month-to-date usage at which a budget
// alert fires.
const alertThresholdPercent = 80.0

// budgetConcurrency bounds how many budgets are evaluated in parallel.
const budgetConcurrency = 8

// BudgetEvaluator checks every budget against its user's month-to-date
// spending and sends at most one alert per budget per calendar month.
type BudgetEvaluator struct {
	store    LedgerStore
	notifier notify.Notifier
}

func NewBudgetEvaluator(store LedgerStore, notifier notify.Notifier) *BudgetEvaluator {
	return &BudgetEvaluator{store: store, notifier: notifier}
}

// EvaluateAll runs one evaluation pass and returns how many alerts were
// dispatched. A failing budget is logged and skipped; it never aborts
// its siblings.
func (e *BudgetEvaluator) EvaluateAll(ctx context.Context, now time.Time) (int, error) {
	budgets, err := e.store.FindBudgetsWithDefaultAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("find budgets: %w", err)
	}

	slog.InfoContext(ctx, "Evaluating budgets", "total", len(budgets))

	var alerted atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(budgetConcurrency)

	for _, bwa := range budgets {
		bwa := bwa
		g.Go(func() error {
			sent, err := e.evaluate(gctx, bwa, now)
			if err != nil {
				slog.ErrorContext(gctx, "Budget evaluation failed",
					"budget_id", bwa.Budget.ID,
					"user_id", bwa.Budget.UserID,
					"error", err)
				return nil
			}
			if sent {
				alerted.Add(1)
			}
			return nil
		})
	}
	g.Wait()

	slog.InfoContext(ctx, "Budget evaluation complete",
		"alerted", alerted.Load(),
		"total", len(budgets))
	return int(alerted.Load()), nil
}

// evaluate checks one budget and reports whether an alert was sent. The
// alert timestamp is recorded before delivery so a slow or failing mail
// relay can never cause a second alert in the same month.
func (e *BudgetEvaluator) evaluate(ctx context.Context, bwa storage.BudgetWithAccount, now time.Time) (bool, error) {
	from, to := core.MonthBounds(now)
	spent, err := e.store.SumExpenses(ctx, bwa.Account.ID, from, to)
	if err != nil {
		return false, fmt.Errorf("sum expenses: %w", err)
	}

	pct := spent.PercentOf(bwa.Budget.Amount)
	if pct < alertThresholdPercent {
		return false, nil
	}
	if bwa.Budget.SameAlertMonth(now) {
		return false, nil
	}

	if err := e.store.UpdateBudgetAlertTimestamp(ctx, bwa.Budget.ID, now); err != nil {
		return false, fmt.Errorf("record alert timestamp: %w", err)
	}

	subject := "Budget alert: spending threshold reached"
	body := fmt.Sprintf(
		"Hi %s,\n\nYou have used %.1f%% of your monthly budget.\nSpent so far: %s of %s.\n",
		bwa.User.Name, pct, spent, bwa.Budget.Amount)
	if err := e.notifier.Send(ctx, bwa.User.Email, subject, body); err != nil {
		// The timestamp is already recorded; delivery failure costs this
		// month's alert rather than risking a duplicate.
		slog.ErrorContext(ctx, "Budget alert delivery failed",
			"budget_id", bwa.Budget.ID,
			"user_email", bwa.User.Email,
			"error", err)
		return true, nil
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"budget_id", bwa.Budget.ID,
		"user_id", bwa.Budget.UserID,
		"percent_used", pct)
	return true, nil
}
