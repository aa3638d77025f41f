package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	accrual "solar-billing/internal/accrual/domain"
	tariff "solar-billing/internal/tariff/domain"
)

type ledgerKey struct {
	family tariff.Family
	key    accrual.EntryKey
}

// LedgerRepository is an in-memory ledger for tests. Insert is atomic per key.
type LedgerRepository struct {
	mu          sync.RWMutex
	flat        map[ledgerKey]accrual.FlatPeriodEntry
	progressive map[ledgerKey]accrual.ProgressiveEntry
	listErr     error
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		flat:        make(map[ledgerKey]accrual.FlatPeriodEntry),
		progressive: make(map[ledgerKey]accrual.ProgressiveEntry),
	}
}

// FailListsWith makes every list call return err; nil restores normal behaviour.
func (r *LedgerRepository) FailListsWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listErr = err
}

// Exists reports whether a row exists.
func (r *LedgerRepository) Exists(ctx context.Context, family tariff.Family, key accrual.EntryKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	k := ledgerKey{family: family, key: key}
	switch family {
	case tariff.FamilyFlatPeriod:
		_, ok := r.flat[k]
		return ok, nil
	case tariff.FamilyProgressive:
		_, ok := r.progressive[k]
		return ok, nil
	}
	return false, fmt.Errorf("%w: family %q", tariff.ErrUnknownTariffType, family)
}

// Insert stores the entry or returns ErrDuplicateLedgerEntry.
func (r *LedgerRepository) Insert(ctx context.Context, entry accrual.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry == nil {
		return accrual.ErrNilEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := ledgerKey{family: entry.Family(), key: entry.Key()}
	switch e := entry.(type) {
	case *accrual.FlatPeriodEntry:
		if _, ok := r.flat[k]; ok {
			return fmt.Errorf("%w: %s", accrual.ErrDuplicateLedgerEntry, k.key)
		}
		r.flat[k] = *e
	case *accrual.ProgressiveEntry:
		if _, ok := r.progressive[k]; ok {
			return fmt.Errorf("%w: %s", accrual.ErrDuplicateLedgerEntry, k.key)
		}
		r.progressive[k] = *e
	default:
		return fmt.Errorf("memory ledger: unsupported entry %T", entry)
	}
	return nil
}

// Count returns the number of rows of a family for a station.
func (r *LedgerRepository) Count(family tariff.Family, stationCode string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	switch family {
	case tariff.FamilyFlatPeriod:
		for k := range r.flat {
			if k.key.StationCode == stationCode {
				count++
			}
		}
	case tariff.FamilyProgressive:
		for k := range r.progressive {
			if k.key.StationCode == stationCode {
				count++
			}
		}
	}
	return count
}

// ListFlatPeriod lists rows with on_date in [from, to).
func (r *LedgerRepository) ListFlatPeriod(ctx context.Context, stationCode string, from, to time.Time) ([]accrual.FlatPeriodEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	from, to = accrual.DateOnly(from), accrual.DateOnly(to)
	var out []accrual.FlatPeriodEntry
	for k, e := range r.flat {
		if k.key.StationCode == stationCode && inRange(e.OnDate, from, to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OnDate.Before(out[j].OnDate) })
	return out, nil
}

// ListProgressive lists rows with on_date in [from, to).
func (r *LedgerRepository) ListProgressive(ctx context.Context, stationCode string, from, to time.Time) ([]accrual.ProgressiveEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	from, to = accrual.DateOnly(from), accrual.DateOnly(to)
	var out []accrual.ProgressiveEntry
	for k, e := range r.progressive {
		if k.key.StationCode == stationCode && inRange(e.OnDate, from, to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OnDate.Before(out[j].OnDate) })
	return out, nil
}

func inRange(date, from, to time.Time) bool {
	return !date.Before(from) && date.Before(to)
}
