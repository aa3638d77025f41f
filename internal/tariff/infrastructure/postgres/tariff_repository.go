package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	tariff "solar-billing/internal/tariff/domain"
	"solar-billing/internal/tariff/infrastructure/memory"
)

const defaultTariffsTable = "tariffs"

// TariffRepository loads the tariff catalogue from postgres.
type TariffRepository struct {
	db    *sql.DB
	table string
}

// Option configures the repository.
type Option func(*TariffRepository)

// WithTable overrides the tariffs table name.
func WithTable(table string) Option {
	return func(r *TariffRepository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewTariffRepository constructs a repository.
func NewTariffRepository(db *sql.DB, opts ...Option) *TariffRepository {
	repo := &TariffRepository{db: db, table: defaultTariffsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// LoadCatalog reads every tariff row and validates it into an in-memory catalogue.
// One invalid row fails the whole load.
func (r *TariffRepository) LoadCatalog(ctx context.Context) (*memory.Catalog, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("tariff repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT name, discount_rate, surcharge_rate, off_peak_rate, on_peak_rate,
	on_peak_from_hour, on_peak_to_hour, tier1_rate, tier2_rate, tier3_rate
FROM %s
ORDER BY name`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []tariff.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return buildCatalog(defs)
}

func buildCatalog(defs []tariff.Definition) (*memory.Catalog, error) {
	catalog, err := memory.NewCatalog()
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		t, err := def.Build()
		if err != nil {
			return nil, fmt.Errorf("tariff repo: row %q: %w", def.Name, err)
		}
		if err := catalog.Put(t); err != nil {
			return nil, fmt.Errorf("tariff repo: row %q: %w", def.Name, err)
		}
	}
	return catalog, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (tariff.Definition, error) {
	var (
		def                 tariff.Definition
		fromHour, toHour    sql.NullInt32
		tier1, tier2, tier3 decimal.NullDecimal
		discount, surcharge decimal.NullDecimal
	)
	if err := row.Scan(
		&def.Name,
		&discount,
		&surcharge,
		&def.OffPeakRate,
		&def.OnPeakRate,
		&fromHour,
		&toHour,
		&tier1,
		&tier2,
		&tier3,
	); err != nil {
		return tariff.Definition{}, err
	}
	def.Discount = discount.Decimal
	def.Surcharge = surcharge.Decimal
	if fromHour.Valid && toHour.Valid {
		from, to := int(fromHour.Int32), int(toHour.Int32)
		def.OnPeakFromHour = &from
		def.OnPeakToHour = &to
	}
	if tier1.Valid && tier2.Valid && tier3.Valid {
		def.TierRates = []decimal.Decimal{tier1.Decimal, tier2.Decimal, tier3.Decimal}
	}
	return def, nil
}
