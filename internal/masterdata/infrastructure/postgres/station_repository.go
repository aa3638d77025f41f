package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	masterdata "solar-billing/internal/masterdata/domain"
)

const (
	defaultStationsTable    = "stations"
	defaultDeviceTypesTable = "device_types"
)

// StationRepository reads station profiles and installed devices from postgres.
type StationRepository struct {
	db               DBTX
	stationsTable    string
	devicesTable     string
	deviceTypesTable string
}

// StationOption configures the repository.
type StationOption func(*StationRepository)

// WithStationTable overrides the default stations table name.
func WithStationTable(table string) StationOption {
	return func(repo *StationRepository) {
		if table != "" {
			repo.stationsTable = table
		}
	}
}

// NewStationRepository constructs a repository.
func NewStationRepository(db DBTX, opts ...StationOption) *StationRepository {
	repo := &StationRepository{
		db:               db,
		stationsTable:    defaultStationsTable,
		devicesTable:     defaultDevicesTable,
		deviceTypesTable: defaultDeviceTypesTable,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Station loads a station profile by code, or nil when unknown.
func (r *StationRepository) Station(ctx context.Context, stationCode string) (*masterdata.Station, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if stationCode == "" {
		return nil, errors.New("station repo: empty station code")
	}
	query := fmt.Sprintf(`
SELECT station_code, COALESCE(station_name, ''), capacity
FROM %s
WHERE station_code = $1
LIMIT 1`, r.stationsTable)

	var (
		station  masterdata.Station
		capacity decimal.NullDecimal
	)
	if err := r.db.QueryRowContext(ctx, query, stationCode).Scan(&station.Code, &station.Name, &capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	station.Capacity = capacity.Decimal
	return &station, nil
}

// Devices lists the devices installed at a station, ordered by name.
func (r *StationRepository) Devices(ctx context.Context, stationCode string) ([]masterdata.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("station repo: nil db")
	}
	if stationCode == "" {
		return nil, errors.New("station repo: empty station code")
	}
	query := fmt.Sprintf(`
SELECT COALESCE(d.dev_name, ''), COALESCE(d.esn_code, ''), COALESCE(t.dev_type_name, ''), d.exd_warranty
FROM %s d
LEFT JOIN %s t ON t.id = d.dev_type_id
WHERE d.station_code = $1
ORDER BY d.dev_name, d.dev_id`, r.devicesTable, r.deviceTypesTable)

	rows, err := r.db.QueryContext(ctx, query, stationCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []masterdata.Device
	for rows.Next() {
		var (
			device   masterdata.Device
			warranty sql.NullTime
		)
		if err := rows.Scan(&device.Name, &device.ESN, &device.DeviceType, &warranty); err != nil {
			return nil, err
		}
		if warranty.Valid {
			expires := time.Date(warranty.Time.Year(), warranty.Time.Month(), warranty.Time.Day(), 0, 0, 0, 0, time.UTC)
			device.WarrantyExpires = &expires
		}
		out = append(out, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
