package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GenerationSample is one hourly generation reading of a station.
// InverterPower is nil when the device reported no value.
type GenerationSample struct {
	StationCode   string
	CollectTime   time.Time
	InverterPower *float64
}

// Yield returns the sampled energy, treating a missing reading as zero.
func (s GenerationSample) Yield() decimal.Decimal {
	if s.InverterPower == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*s.InverterPower)
}

// SampleReader loads samples with collect time in [start, end), ordered by time.
type SampleReader interface {
	ListSamples(ctx context.Context, stationCode string, start, end time.Time) ([]GenerationSample, error)
}
