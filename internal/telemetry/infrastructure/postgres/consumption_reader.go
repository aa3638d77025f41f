package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	telemetry "solar-billing/internal/telemetry/domain"
)

const defaultStationsDayTable = "stations_day"

// ConsumptionReader reads daily station consumption. collect_time is stored as epoch seconds.
type ConsumptionReader struct {
	db    *sql.DB
	table string
}

// ConsumptionOption configures the reader.
type ConsumptionOption func(*ConsumptionReader)

// WithConsumptionTable overrides the daily table name.
func WithConsumptionTable(table string) ConsumptionOption {
	return func(reader *ConsumptionReader) {
		if reader != nil && table != "" {
			reader.table = table
		}
	}
}

// NewConsumptionReader constructs a reader.
func NewConsumptionReader(db *sql.DB, opts ...ConsumptionOption) *ConsumptionReader {
	reader := &ConsumptionReader{db: db, table: defaultStationsDayTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ListDailyConsumption returns rows with collect_time in [start, end).
func (r *ConsumptionReader) ListDailyConsumption(ctx context.Context, stationCode string, start, end time.Time) ([]telemetry.DailyConsumption, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("consumption reader: nil db")
	}
	if stationCode == "" {
		return nil, errors.New("consumption reader: empty station code")
	}
	if !end.After(start) {
		return nil, errors.New("consumption reader: invalid range")
	}

	query := fmt.Sprintf(`
SELECT station_code, collect_time, use_power
FROM %s
WHERE station_code = $1 AND collect_time >= $2 AND collect_time < $3
ORDER BY collect_time`, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationCode, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []telemetry.DailyConsumption
	for rows.Next() {
		var (
			row         telemetry.DailyConsumption
			collectTime int64
			usePower    sql.NullFloat64
		)
		if err := rows.Scan(&row.StationCode, &collectTime, &usePower); err != nil {
			return nil, err
		}
		row.CollectTime = time.Unix(collectTime, 0).UTC()
		if usePower.Valid {
			value := usePower.Float64
			row.UsePower = &value
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
