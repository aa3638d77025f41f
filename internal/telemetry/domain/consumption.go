package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DailyConsumption is the energy a station drew on one day.
// CollectTime is the start of the day as reported by the station; UsePower is nil when unreported.
type DailyConsumption struct {
	StationCode string
	CollectTime time.Time
	UsePower    *float64
}

// Energy returns the consumed energy, treating a missing reading as zero.
func (c DailyConsumption) Energy() decimal.Decimal {
	if c.UsePower == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*c.UsePower)
}

// ConsumptionReader loads daily consumption with collect time in [start, end), ordered by time.
type ConsumptionReader interface {
	ListDailyConsumption(ctx context.Context, stationCode string, start, end time.Time) ([]DailyConsumption, error)
}
