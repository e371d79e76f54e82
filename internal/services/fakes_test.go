package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledgerd/internal/amqp"
	"ledgerd/internal/core"
	"ledgerd/internal/storage"
)

// fakeStore is an in-memory LedgerStore and ReportStore with injectable
// failures.
type fakeStore struct {
	mu sync.Mutex

	templates map[string]core.Transaction
	accounts  map[string]core.Account
	applied   []core.Transaction

	budgets         []storage.BudgetWithAccount
	expenses        map[string]core.Money // account id -> month-to-date spend
	alertTimestamps map[string]time.Time  // budget id -> sent at

	summaries []storage.ReportRow

	findDueErr    error
	applyErr      error
	sumErr        map[string]error // account id -> error
	summariesErr  error
	updateAlerts  int
	appliedByTmpl map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		templates:       make(map[string]core.Transaction),
		accounts:        make(map[string]core.Account),
		expenses:        make(map[string]core.Money),
		alertTimestamps: make(map[string]time.Time),
		sumErr:          make(map[string]error),
		appliedByTmpl:   make(map[string]int),
	}
}

func (f *fakeStore) FindDueRecurringTransactions(_ context.Context, now time.Time) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findDueErr != nil {
		return nil, f.findDueErr
	}
	var due []core.Transaction
	for _, t := range f.templates {
		if t.IsDue(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (f *fakeStore) GetTransactionWithAccount(_ context.Context, id, userID string) (core.Transaction, core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.templates[id]
	if !ok || t.UserID != userID {
		return core.Transaction{}, core.Account{}, core.ErrNotFound
	}
	return t, f.accounts[t.AccountID], nil
}

func (f *fakeStore) ApplyRecurringOccurrence(_ context.Context, template, occurrence core.Transaction, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.applyErr != nil {
		return f.applyErr
	}
	next := core.NextDate(now, template.Interval)
	template.LastProcessed = &now
	template.NextDueDate = &next
	f.templates[template.ID] = template
	f.applied = append(f.applied, occurrence)
	f.appliedByTmpl[template.ID]++
	return nil
}

func (f *fakeStore) FindBudgetsWithDefaultAccounts(context.Context) ([]storage.BudgetWithAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.budgets, nil
}

func (f *fakeStore) UpdateBudgetAlertTimestamp(_ context.Context, budgetID string, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alertTimestamps[budgetID] = sentAt
	f.updateAlerts++
	return nil
}

func (f *fakeStore) SumExpenses(_ context.Context, accountID string, _, _ time.Time) (core.Money, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sumErr[accountID]; err != nil {
		return core.Money{}, err
	}
	return f.expenses[accountID], nil
}

func (f *fakeStore) MonthSummaries(_ context.Context, year int, month time.Month) ([]storage.ReportRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summariesErr != nil {
		return nil, f.summariesErr
	}
	out := make([]storage.ReportRow, len(f.summaries))
	copy(out, f.summaries)
	for i := range out {
		out[i].Summary.Year = year
		out[i].Summary.Month = int(month)
	}
	return out, nil
}

func (f *fakeStore) appliedOccurrences() []core.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.Transaction, len(f.applied))
	copy(out, f.applied)
	return out
}

// fakePublisher records published tasks and can fail selectively.
type fakePublisher struct {
	mu        sync.Mutex
	published []*amqp.RecurringTaskMessage
	failFor   map[string]bool // transaction id -> fail
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failFor: make(map[string]bool)}
}

func (p *fakePublisher) PublishRecurringTask(_ context.Context, msg *amqp.RecurringTaskMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.TransactionID] {
		return fmt.Errorf("broker unavailable")
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *fakePublisher) messages() []*amqp.RecurringTaskMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*amqp.RecurringTaskMessage, len(p.published))
	copy(out, p.published)
	return out
}
