package accrual

import "time"

// DefaultTimezone is the billing time zone used when none is configured.
const DefaultTimezone = "Asia/Bangkok"

// BillingDay returns local midnight of the day billed by a run at now:
// the calendar day of now minus dayOffset days minus one, in loc.
func BillingDay(now time.Time, dayOffset int, loc *time.Location) (time.Time, error) {
	if dayOffset < 0 {
		return time.Time{}, ErrInvalidDayOffset
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-dayOffset-1, 0, 0, 0, 0, loc), nil
}

// DateOnly returns the civil date of t as midnight UTC, the shape stored in DATE columns.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LocalDay returns midnight of the civil date in loc.
func LocalDay(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
}
