package core

import (
	"fmt"
	"time"
)

// NextDate returns the next occurrence date for a recurring transaction
// processed at t. It is a pure function over the four interval variants.
//
// Calendar arithmetic policy: MONTHLY and YEARLY clamp to the last day of
// the target month instead of rolling over, so Jan 31 + 1 month is Feb 28
// (Feb 29 in a leap year) and Feb 29 + 1 year is Feb 28. time.AddDate
// would roll Jan 31 into Mar 2/3, which silently shifts the schedule day;
// clamping keeps a "31st of the month" subscription anchored to month end.
//
// An interval outside the four variants is a programming error and panics.
func NextDate(t time.Time, iv RecurrenceInterval) time.Time {
	switch iv {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return addMonthsClamped(t, 1)
	case Yearly:
		return addYearsClamped(t, 1)
	default:
		panic(fmt.Sprintf("core: unknown recurrence interval %q", iv))
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	targetMonth := time.Month(int(month) + months)
	if last := lastDayOfMonth(year, targetMonth, t.Location()); day > last {
		day = last
	}
	return time.Date(year, targetMonth, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()
	if last := lastDayOfMonth(year+years, month, t.Location()); day > last {
		day = last
	}
	return time.Date(year+years, month, day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// lastDayOfMonth uses day-zero normalization: the 0th of the following
// month is the last day of this one.
func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
