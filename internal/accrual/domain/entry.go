package accrual

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	tariff "solar-billing/internal/tariff/domain"
)

// EntryKey identifies the single ledger row allowed per station and day.
type EntryKey struct {
	StationCode string
	OnDate      time.Time
}

// String renders the key as station/YYYY-MM-DD.
func (k EntryKey) String() string {
	return k.StationCode + "/" + k.OnDate.Format("2006-01-02")
}

// NewEntryKey validates and normalizes a key.
func NewEntryKey(stationCode string, onDate time.Time) (EntryKey, error) {
	stationCode = strings.TrimSpace(stationCode)
	if stationCode == "" {
		return EntryKey{}, ErrEmptyStationCode
	}
	if onDate.IsZero() {
		return EntryKey{}, ErrInvalidOnDate
	}
	return EntryKey{StationCode: stationCode, OnDate: DateOnly(onDate)}, nil
}

// LedgerEntry is implemented by *FlatPeriodEntry and *ProgressiveEntry.
type LedgerEntry interface {
	Key() EntryKey
	Family() tariff.Family
	Total() decimal.Decimal
	Amount() decimal.Decimal
}

// FlatPeriodEntry is one day of flat period billing.
type FlatPeriodEntry struct {
	StationCode  string
	OnDate       time.Time
	YieldOffPeak decimal.Decimal
	YieldOnPeak  decimal.Decimal
	YieldTotal   decimal.Decimal
	Revenue      decimal.Decimal
}

// NewFlatPeriodEntry builds an entry; the total is derived from the two periods.
func NewFlatPeriodEntry(stationCode string, onDate time.Time, offPeak, onPeak, revenue decimal.Decimal) (*FlatPeriodEntry, error) {
	key, err := NewEntryKey(stationCode, onDate)
	if err != nil {
		return nil, err
	}
	if offPeak.IsNegative() || onPeak.IsNegative() || revenue.IsNegative() {
		return nil, ErrNegativeValue
	}
	return &FlatPeriodEntry{
		StationCode:  key.StationCode,
		OnDate:       key.OnDate,
		YieldOffPeak: offPeak,
		YieldOnPeak:  onPeak,
		YieldTotal:   offPeak.Add(onPeak),
		Revenue:      revenue,
	}, nil
}

func (e *FlatPeriodEntry) Key() EntryKey {
	return EntryKey{StationCode: e.StationCode, OnDate: e.OnDate}
}
func (e *FlatPeriodEntry) Family() tariff.Family   { return tariff.FamilyFlatPeriod }
func (e *FlatPeriodEntry) Total() decimal.Decimal  { return e.YieldTotal }
func (e *FlatPeriodEntry) Amount() decimal.Decimal { return e.Revenue }

// ProgressiveEntry is one day of progressive volume billing.
type ProgressiveEntry struct {
	StationCode string
	OnDate      time.Time
	YieldTotal  decimal.Decimal
	Revenue     decimal.Decimal
}

// NewProgressiveEntry builds an entry.
func NewProgressiveEntry(stationCode string, onDate time.Time, total, revenue decimal.Decimal) (*ProgressiveEntry, error) {
	key, err := NewEntryKey(stationCode, onDate)
	if err != nil {
		return nil, err
	}
	if total.IsNegative() || revenue.IsNegative() {
		return nil, ErrNegativeValue
	}
	return &ProgressiveEntry{
		StationCode: key.StationCode,
		OnDate:      key.OnDate,
		YieldTotal:  total,
		Revenue:     revenue,
	}, nil
}

func (e *ProgressiveEntry) Key() EntryKey {
	return EntryKey{StationCode: e.StationCode, OnDate: e.OnDate}
}
func (e *ProgressiveEntry) Family() tariff.Family   { return tariff.FamilyProgressive }
func (e *ProgressiveEntry) Total() decimal.Decimal  { return e.YieldTotal }
func (e *ProgressiveEntry) Amount() decimal.Decimal { return e.Revenue }

// NewEntry builds the ledger entry shape matching the quote's family.
func NewEntry(stationCode string, onDate time.Time, quote tariff.Quote) (LedgerEntry, error) {
	switch quote.Family {
	case tariff.FamilyFlatPeriod:
		return NewFlatPeriodEntry(stationCode, onDate, quote.YieldOffPeak, quote.YieldOnPeak, quote.Revenue)
	case tariff.FamilyProgressive:
		return NewProgressiveEntry(stationCode, onDate, quote.YieldTotal, quote.Revenue)
	}
	return nil, fmt.Errorf("%w: family %q", tariff.ErrUnknownTariffType, quote.Family)
}

// LedgerRepository persists ledger entries. Insert returns ErrDuplicateLedgerEntry
// when a row for the same family, station and day exists.
type LedgerRepository interface {
	Exists(ctx context.Context, family tariff.Family, key EntryKey) (bool, error)
	Insert(ctx context.Context, entry LedgerEntry) error
}

// LedgerReader lists ledger entries with on_date in [from, to).
type LedgerReader interface {
	ListFlatPeriod(ctx context.Context, stationCode string, from, to time.Time) ([]FlatPeriodEntry, error)
	ListProgressive(ctx context.Context, stationCode string, from, to time.Time) ([]ProgressiveEntry, error)
}
