package accrual

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStationCode is returned when station code is empty.
	ErrEmptyStationCode = errors.New("accrual: empty station code")
	// ErrInvalidOnDate is returned when the ledger date is zero.
	ErrInvalidOnDate = errors.New("accrual: invalid on date")
	// ErrInvalidDayOffset is returned for a negative day offset.
	ErrInvalidDayOffset = errors.New("accrual: invalid day offset")
	// ErrNegativeValue is returned when a yield or revenue is negative.
	ErrNegativeValue = errors.New("accrual: negative value")
	// ErrNilEntry is returned when writing a nil ledger entry.
	ErrNilEntry = errors.New("accrual: nil ledger entry")
	// ErrDataIncomplete is returned when a pricing window does not hold one sample per hour.
	ErrDataIncomplete = errors.New("accrual: data incomplete")
	// ErrConfigurationMissing is returned when a station has no usable tariff.
	ErrConfigurationMissing = errors.New("accrual: configuration missing")
	// ErrDuplicateLedgerEntry is returned when a ledger row already exists for the station and day.
	ErrDuplicateLedgerEntry = errors.New("accrual: duplicate ledger entry")
)

// IncompleteWindowError reports the window that failed the completeness gate.
type IncompleteWindowError struct {
	Window   string
	Expected int
	Got      int
}

func (e *IncompleteWindowError) Error() string {
	return fmt.Sprintf("accrual: data incomplete: window=%s expected=%d got=%d", e.Window, e.Expected, e.Got)
}

// Is matches ErrDataIncomplete.
func (e *IncompleteWindowError) Is(target error) bool {
	return target == ErrDataIncomplete
}
