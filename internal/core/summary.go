package core

import "time"

// MonthSummary aggregates a user's ledger activity for one calendar month.
type MonthSummary struct {
	UserID   string
	Year     int
	Month    int // 1-12
	Income   Money
	Expenses Money
}

// Net is income minus expenses for the month.
func (s MonthSummary) Net() Money {
	return Money{Cents: s.Income.Cents - s.Expenses.Cents}
}

// MonthBounds returns the first instant of the month containing t and the
// first instant of the following month, the half-open range used for
// month-to-date aggregation.
func MonthBounds(t time.Time) (from, to time.Time) {
	from = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}
