package core

import (
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	good := Transaction{
		ID:          "t1",
		UserID:      "u1",
		AccountID:   "a1",
		Kind:        Expense,
		Amount:      Money{Cents: 2000},
		OccurredAt:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Category:    "housing",
		Description: "Rent",
		Status:      StatusCompleted,
		IsRecurring: true,
		Interval:    Monthly,
		NextDueDate: &due,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]Transaction{
		"unknown kind": {
			Kind: "TRANSFER", Amount: Money{Cents: 1}, Description: "x", Category: "c",
		},
		"negative amount": {
			Kind: Income, Amount: Money{Cents: -1}, Description: "x", Category: "c",
		},
		"empty description": {
			Kind: Income, Amount: Money{Cents: 1}, Description: "  ", Category: "c",
		},
		"empty category": {
			Kind: Income, Amount: Money{Cents: 1}, Description: "x", Category: "",
		},
		"recurring without interval": {
			Kind: Expense, Amount: Money{Cents: 1}, Description: "x", Category: "c",
			IsRecurring: true,
		},
		"non-recurring with next due": {
			Kind: Expense, Amount: Money{Cents: 1}, Description: "x", Category: "c",
			NextDueDate: &due,
		},
	}
	for name, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestTransactionIsDue(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)
	processed := now.AddDate(0, -1, 0)

	cases := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{
			name: "never processed - due",
			tx:   Transaction{IsRecurring: true, NextDueDate: &future},
			want: true,
		},
		{
			name: "next due in past - due",
			tx:   Transaction{IsRecurring: true, LastProcessed: &processed, NextDueDate: &past},
			want: true,
		},
		{
			name: "next due exactly now - due",
			tx:   Transaction{IsRecurring: true, LastProcessed: &processed, NextDueDate: &now},
			want: true,
		},
		{
			name: "next due in future - not due",
			tx:   Transaction{IsRecurring: true, LastProcessed: &processed, NextDueDate: &future},
			want: false,
		},
		{
			name: "non-recurring - never due",
			tx:   Transaction{},
			want: false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tx.IsDue(now); got != tc.want {
				t.Errorf("IsDue() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTransactionBalanceDelta(t *testing.T) {
	income := Transaction{Kind: Income, Amount: Money{Cents: 500}}
	if got := income.BalanceDelta().Cents; got != 500 {
		t.Errorf("income delta = %d, want 500", got)
	}
	expense := Transaction{Kind: Expense, Amount: Money{Cents: 500}}
	if got := expense.BalanceDelta().Cents; got != -500 {
		t.Errorf("expense delta = %d, want -500", got)
	}
}

func TestBudgetSameAlertMonth(t *testing.T) {
	now := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	sameMonth := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	lastYear := time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		sent *time.Time
		want bool
	}{
		{"never sent", nil, false},
		{"sent this month", &sameMonth, true},
		{"sent last month", &lastMonth, false},
		{"sent same month last year", &lastYear, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := Budget{LastAlertSent: tc.sent}
			if got := b.SameAlertMonth(now); got != tc.want {
				t.Errorf("SameAlertMonth() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := (Budget{UserID: "u1", Amount: Money{Cents: 100000}}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Budget{UserID: "u1", Amount: Money{Cents: 0}}).Validate(); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if err := (Budget{Amount: Money{Cents: 100}}).Validate(); err == nil {
		t.Fatalf("expected error for missing user")
	}
}
