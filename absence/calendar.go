package absence

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKING-TIME UTILITY
// =============================================================================

// HoursPerDay converts a working-day count to hours for vacation and sick
// accounting. Permit consumption never goes through this conversion; it uses
// the request's explicit hours field.
const HoursPerDay = 8

// Date truncates t to its calendar date at UTC midnight. All request dates
// are stored at this granularity.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWorkingDay reports whether t falls Monday through Friday.
func IsWorkingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// WorkingDays counts the weekdays (Mon-Fri) in the inclusive range
// [start, end], both endpoints counted when they are weekdays. start > end
// yields zero; rejecting an inverted range is the caller's job at creation
// time.
func WorkingDays(start, end time.Time) int {
	start, end = Date(start), Date(end)
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWorkingDay(d) {
			days++
		}
	}
	return days
}

// WorkingHours returns WorkingDays(start, end) * HoursPerDay as a decimal.
func WorkingHours(start, end time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(WorkingDays(start, end)) * HoursPerDay)
}
