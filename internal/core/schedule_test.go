package core

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNextDate(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		iv   RecurrenceInterval
		want time.Time
	}{
		{"daily", date(2024, 1, 15), Daily, date(2024, 1, 16)},
		{"daily across month end", date(2024, 1, 31), Daily, date(2024, 2, 1)},
		{"weekly", date(2024, 1, 15), Weekly, date(2024, 1, 22)},
		{"weekly across year end", date(2023, 12, 28), Weekly, date(2024, 1, 4)},
		{"monthly plain", date(2024, 3, 10), Monthly, date(2024, 4, 10)},
		{"monthly jan 31 clamps to feb 29 in leap year", date(2024, 1, 31), Monthly, date(2024, 2, 29)},
		{"monthly jan 31 clamps to feb 28", date(2025, 1, 31), Monthly, date(2025, 2, 28)},
		{"monthly mar 31 clamps to apr 30", date(2024, 3, 31), Monthly, date(2024, 4, 30)},
		{"monthly across year end", date(2024, 12, 15), Monthly, date(2025, 1, 15)},
		{"yearly plain", date(2024, 6, 1), Yearly, date(2025, 6, 1)},
		{"yearly feb 29 clamps to feb 28", date(2024, 2, 29), Yearly, date(2025, 2, 28)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextDate(tc.in, tc.iv)
			if !got.Equal(tc.want) {
				t.Errorf("NextDate(%v, %s) = %v, want %v", tc.in, tc.iv, got, tc.want)
			}
		})
	}
}

func TestNextDatePreservesClock(t *testing.T) {
	in := time.Date(2024, 1, 31, 9, 30, 15, 0, time.UTC)
	got := NextDate(in, Monthly)
	want := time.Date(2024, 2, 29, 9, 30, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextDate = %v, want %v", got, want)
	}
}

func TestNextDateStrictlyIncreases(t *testing.T) {
	start := date(2024, 1, 31)
	for _, iv := range []RecurrenceInterval{Daily, Weekly, Monthly, Yearly} {
		cur := start
		for i := 0; i < 24; i++ {
			next := NextDate(cur, iv)
			if !next.After(cur) {
				t.Fatalf("%s: NextDate(%v) = %v did not advance", iv, cur, next)
			}
			cur = next
		}
	}
}

func TestNextDateUnknownIntervalPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown interval")
		}
	}()
	NextDate(date(2024, 1, 1), "HOURLY")
}
