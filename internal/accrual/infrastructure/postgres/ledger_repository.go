package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	accrual "solar-billing/internal/accrual/domain"
	tariff "solar-billing/internal/tariff/domain"
)

const (
	defaultFlatPeriodTable  = "ledger_flat_period"
	defaultProgressiveTable = "ledger_progressive"

	uniqueViolation = "23505"
)

// LedgerRepository persists ledger entries. Uniqueness on (station_code, on_date)
// is enforced by the tables.
type LedgerRepository struct {
	db               *sql.DB
	flatPeriodTable  string
	progressiveTable string
}

// LedgerOption configures the repository.
type LedgerOption func(*LedgerRepository)

// WithFlatPeriodTable overrides the flat period ledger table name.
func WithFlatPeriodTable(table string) LedgerOption {
	return func(r *LedgerRepository) {
		if table != "" {
			r.flatPeriodTable = table
		}
	}
}

// WithProgressiveTable overrides the progressive ledger table name.
func WithProgressiveTable(table string) LedgerOption {
	return func(r *LedgerRepository) {
		if table != "" {
			r.progressiveTable = table
		}
	}
}

// NewLedgerRepository constructs a repository.
func NewLedgerRepository(db *sql.DB, opts ...LedgerOption) *LedgerRepository {
	repo := &LedgerRepository{
		db:               db,
		flatPeriodTable:  defaultFlatPeriodTable,
		progressiveTable: defaultProgressiveTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

func (r *LedgerRepository) tableFor(family tariff.Family) (string, error) {
	switch family {
	case tariff.FamilyFlatPeriod:
		return r.flatPeriodTable, nil
	case tariff.FamilyProgressive:
		return r.progressiveTable, nil
	}
	return "", fmt.Errorf("%w: family %q", tariff.ErrUnknownTariffType, family)
}

// Exists reports whether a row exists for the key in the family's table.
func (r *LedgerRepository) Exists(ctx context.Context, family tariff.Family, key accrual.EntryKey) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("ledger repo: nil db")
	}
	table, err := r.tableFor(family)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE station_code = $1 AND on_date = $2 LIMIT 1`, table)
	var one int
	err = r.db.QueryRowContext(ctx, query, key.StationCode, key.OnDate).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert writes a new row. A unique violation maps to ErrDuplicateLedgerEntry.
func (r *LedgerRepository) Insert(ctx context.Context, entry accrual.LedgerEntry) error {
	if r == nil || r.db == nil {
		return errors.New("ledger repo: nil db")
	}
	var err error
	switch e := entry.(type) {
	case *accrual.FlatPeriodEntry:
		_, err = r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (station_code, on_date, yield_off_peak, yield_on_peak, yield_total, revenue, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.flatPeriodTable),
			e.StationCode, e.OnDate, e.YieldOffPeak, e.YieldOnPeak, e.YieldTotal, e.Revenue, time.Now().UTC())
	case *accrual.ProgressiveEntry:
		_, err = r.db.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (station_code, on_date, yield_total, revenue, created_at)
VALUES ($1,$2,$3,$4,$5)`, r.progressiveTable),
			e.StationCode, e.OnDate, e.YieldTotal, e.Revenue, time.Now().UTC())
	case nil:
		return accrual.ErrNilEntry
	default:
		return fmt.Errorf("ledger repo: unsupported entry %T", entry)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", accrual.ErrDuplicateLedgerEntry, entry.Key())
	}
	return err
}

// ListFlatPeriod lists flat period rows with on_date in [from, to), ordered by date.
func (r *LedgerRepository) ListFlatPeriod(ctx context.Context, stationCode string, from, to time.Time) ([]accrual.FlatPeriodEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT station_code, on_date, yield_off_peak, yield_on_peak, yield_total, revenue
FROM %s
WHERE station_code = $1 AND on_date >= $2 AND on_date < $3
ORDER BY on_date`, r.flatPeriodTable), stationCode, accrual.DateOnly(from), accrual.DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []accrual.FlatPeriodEntry
	for rows.Next() {
		var e accrual.FlatPeriodEntry
		if err := rows.Scan(&e.StationCode, &e.OnDate, &e.YieldOffPeak, &e.YieldOnPeak, &e.YieldTotal, &e.Revenue); err != nil {
			return nil, err
		}
		e.OnDate = accrual.DateOnly(e.OnDate)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListProgressive lists progressive rows with on_date in [from, to), ordered by date.
func (r *LedgerRepository) ListProgressive(ctx context.Context, stationCode string, from, to time.Time) ([]accrual.ProgressiveEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT station_code, on_date, yield_total, revenue
FROM %s
WHERE station_code = $1 AND on_date >= $2 AND on_date < $3
ORDER BY on_date`, r.progressiveTable), stationCode, accrual.DateOnly(from), accrual.DateOnly(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []accrual.ProgressiveEntry
	for rows.Next() {
		var e accrual.ProgressiveEntry
		if err := rows.Scan(&e.StationCode, &e.OnDate, &e.YieldTotal, &e.Revenue); err != nil {
			return nil, err
		}
		e.OnDate = accrual.DateOnly(e.OnDate)
		out = append(out, e)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
