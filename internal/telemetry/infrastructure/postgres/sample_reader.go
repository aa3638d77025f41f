package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	telemetry "solar-billing/internal/telemetry/domain"
)

const defaultStationsHourTable = "stations_hour"

// SampleReader reads hourly generation samples. collect_time is stored as epoch seconds.
type SampleReader struct {
	db    *sql.DB
	table string
}

// ReaderOption configures the reader.
type ReaderOption func(*SampleReader)

// WithTable overrides the samples table name.
func WithTable(table string) ReaderOption {
	return func(reader *SampleReader) {
		if reader != nil && table != "" {
			reader.table = table
		}
	}
}

// NewSampleReader constructs a reader.
func NewSampleReader(db *sql.DB, opts ...ReaderOption) *SampleReader {
	reader := &SampleReader{db: db, table: defaultStationsHourTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ListSamples returns samples with collect_time in [start, end).
func (r *SampleReader) ListSamples(ctx context.Context, stationCode string, start, end time.Time) ([]telemetry.GenerationSample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sample reader: nil db")
	}
	if stationCode == "" {
		return nil, errors.New("sample reader: empty station code")
	}
	if !end.After(start) {
		return nil, errors.New("sample reader: invalid range")
	}

	query := fmt.Sprintf(`
SELECT station_code, collect_time, inverter_power
FROM %s
WHERE station_code = $1 AND collect_time >= $2 AND collect_time < $3
ORDER BY collect_time`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationCode, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.GenerationSample
	for rows.Next() {
		var (
			sample      telemetry.GenerationSample
			collectTime int64
			power       sql.NullFloat64
		)
		if err := rows.Scan(&sample.StationCode, &collectTime, &power); err != nil {
			return nil, err
		}
		sample.CollectTime = time.Unix(collectTime, 0).UTC()
		if power.Valid {
			value := power.Float64
			sample.InverterPower = &value
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
