package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "solar-billing/internal/masterdata/domain"
)

const (
	defaultDevicesTable = "devices"
	defaultTariffsTable = "tariffs"
	// DefaultInverterDeviceType is the device type id of inverters.
	DefaultInverterDeviceType = 1
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AssignmentRepository reads device tariff assignments from postgres.
type AssignmentRepository struct {
	db           DBTX
	devicesTable string
	tariffsTable string
	deviceType   int
}

// NewAssignmentRepository constructs a repository.
func NewAssignmentRepository(db DBTX, opts ...AssignmentOption) *AssignmentRepository {
	repo := &AssignmentRepository{
		db:           db,
		devicesTable: defaultDevicesTable,
		tariffsTable: defaultTariffsTable,
		deviceType:   DefaultInverterDeviceType,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AssignmentOption configures the repository.
type AssignmentOption func(*AssignmentRepository)

// WithDeviceTable overrides the default devices table name.
func WithDeviceTable(table string) AssignmentOption {
	return func(repo *AssignmentRepository) {
		if table != "" {
			repo.devicesTable = table
		}
	}
}

// WithTariffTable overrides the default tariffs table name.
func WithTariffTable(table string) AssignmentOption {
	return func(repo *AssignmentRepository) {
		if table != "" {
			repo.tariffsTable = table
		}
	}
}

// WithDeviceType overrides the device type id considered billable.
func WithDeviceType(deviceType int) AssignmentOption {
	return func(repo *AssignmentRepository) {
		if deviceType > 0 {
			repo.deviceType = deviceType
		}
	}
}

// ListBillingAssignments returns distinct (station, tariff type) pairs of inverter devices.
func (r *AssignmentRepository) ListBillingAssignments(ctx context.Context) ([]masterdata.TariffAssignment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assignment repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT DISTINCT d.station_code, COALESCE(t.name, '')
FROM %s d
LEFT JOIN %s t ON t.id = d.tariff_id
WHERE d.dev_type_id = $1
ORDER BY d.station_code, 2`, r.devicesTable, r.tariffsTable)

	rows, err := r.db.QueryContext(ctx, query, r.deviceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []masterdata.TariffAssignment
	for rows.Next() {
		var a masterdata.TariffAssignment
		if err := rows.Scan(&a.StationCode, &a.TariffType); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return masterdata.Dedupe(out), nil
}

// AssignmentFor returns the assignment of one station, or nil when the station has no inverter.
func (r *AssignmentRepository) AssignmentFor(ctx context.Context, stationCode string) (*masterdata.TariffAssignment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("assignment repo: nil db")
	}
	if stationCode == "" {
		return nil, errors.New("assignment repo: empty station code")
	}
	query := fmt.Sprintf(`
SELECT d.station_code, COALESCE(t.name, '')
FROM %s d
LEFT JOIN %s t ON t.id = d.tariff_id
WHERE d.dev_type_id = $1 AND d.station_code = $2
ORDER BY t.name NULLS LAST
LIMIT 1`, r.devicesTable, r.tariffsTable)

	var a masterdata.TariffAssignment
	if err := r.db.QueryRowContext(ctx, query, r.deviceType, stationCode).Scan(&a.StationCode, &a.TariffType); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
