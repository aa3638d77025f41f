package application

import (
	"context"
	"time"

	masterdata "solar-billing/internal/masterdata/domain"
	telemetry "solar-billing/internal/telemetry/domain"
)

// SampleReader loads hourly generation samples with collect time in [start, end).
type SampleReader interface {
	ListSamples(ctx context.Context, stationCode string, start, end time.Time) ([]telemetry.GenerationSample, error)
}

// AssignmentReader lists the (station, tariff type) pairs to bill.
type AssignmentReader interface {
	ListBillingAssignments(ctx context.Context) ([]masterdata.TariffAssignment, error)
	AssignmentFor(ctx context.Context, stationCode string) (*masterdata.TariffAssignment, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
