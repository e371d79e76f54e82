package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyPercentOf(t *testing.T) {
	spent := Money{Cents: 85000}
	budget := Money{Cents: 100000}
	if got := spent.PercentOf(budget); got != 85.0 {
		t.Errorf("PercentOf = %v, want 85", got)
	}
	if got := spent.PercentOf(Money{}); got != 0 {
		t.Errorf("PercentOf zero total = %v, want 0", got)
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{12345, "123.45"},
		{-2000, "-20.00"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMonthSummaryNet(t *testing.T) {
	s := MonthSummary{Income: Money{Cents: 300000}, Expenses: Money{Cents: 120000}}
	if got := s.Net().Cents; got != 180000 {
		t.Errorf("Net = %d, want 180000", got)
	}
}
