package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionKind = "INCOME"
	Expense TransactionKind = "EXPENSE"

	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"

	Daily   RecurrenceInterval = "DAILY"
	Weekly  RecurrenceInterval = "WEEKLY"
	Monthly RecurrenceInterval = "MONTHLY"
	Yearly  RecurrenceInterval = "YEARLY"
)

type (
	TransactionKind    string
	TransactionStatus  string
	RecurrenceInterval string

	User struct {
		ID    string
		Email string
		Name  string
	}

	// Account is the authoritative running balance for a user. The balance
	// is only ever mutated through transaction processing, never recomputed
	// from history.
	Account struct {
		ID        string
		UserID    string
		Name      string
		Balance   Money
		IsDefault bool
	}

	// Transaction is either a one-shot ledger entry or, when IsRecurring is
	// set, the template whose schedule is advanced on every generated
	// occurrence. A template is never consumed; the occurrences it spawns
	// are themselves never recurring.
	Transaction struct {
		ID            string
		UserID        string
		AccountID     string
		Kind          TransactionKind
		Amount        Money // non-negative magnitude, sign implied by Kind
		OccurredAt    time.Time
		Category      string
		Description   string
		Status        TransactionStatus
		IsRecurring   bool
		Interval      RecurrenceInterval // set iff IsRecurring
		LastProcessed *time.Time         // nil until first generated occurrence
		NextDueDate   *time.Time         // set iff IsRecurring
	}

	// Budget is a per-user monthly spending ceiling. At most one alert is
	// sent per calendar month, tracked through LastAlertSent.
	Budget struct {
		ID            string
		UserID        string
		Amount        Money
		LastAlertSent *time.Time
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrNotDue           = errors.New("transaction not due")
	ErrAlreadyProcessed = errors.New("transaction already processed by a concurrent run")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidInterval  = errors.New("invalid recurrence interval")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
)

// BalanceDelta returns the signed balance change this transaction applies
// to its account: positive for income, negative for expense.
func (t Transaction) BalanceDelta() Money {
	if t.Kind == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return Money{Cents: t.Amount.Cents}
}

// IsDue reports whether a recurring template should be processed at now:
// it has never been processed, or its next due date has arrived. This is
// the due-ness predicate re-evaluated at execution time, not trusted from
// an earlier scan.
func (t Transaction) IsDue(now time.Time) bool {
	if !t.IsRecurring {
		return false
	}
	if t.LastProcessed == nil {
		return true
	}
	if t.NextDueDate == nil {
		return true
	}
	return !t.NextDueDate.After(now)
}

func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

func (iv RecurrenceInterval) Valid() bool {
	switch iv {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return errors.New("invalid transaction kind: " + string(t.Kind))
	}
	if t.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.IsRecurring {
		if !t.Interval.Valid() {
			return ErrInvalidInterval
		}
	} else {
		// A non-recurring transaction never carries recurrence state.
		if t.Interval != "" || t.NextDueDate != nil || t.LastProcessed != nil {
			return errors.New("non-recurring transaction carries recurrence state")
		}
	}
	return nil
}

func (b Budget) Validate() error {
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(b.UserID) == "" {
		return errors.New("budget requires an owning user")
	}
	return nil
}

// SameAlertMonth reports whether the last alert was sent in the same
// (year, month) as now. A nil timestamp means no alert was ever sent.
func (b Budget) SameAlertMonth(now time.Time) bool {
	if b.LastAlertSent == nil {
		return false
	}
	return b.LastAlertSent.Year() == now.Year() && b.LastAlertSent.Month() == now.Month()
}
