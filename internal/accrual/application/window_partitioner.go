package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	accrual "solar-billing/internal/accrual/domain"
	tariff "solar-billing/internal/tariff/domain"
)

// WindowPartitioner fetches a day's samples window by window and applies the completeness gate.
type WindowPartitioner struct {
	samples SampleReader
}

// NewWindowPartitioner constructs a partitioner.
func NewWindowPartitioner(samples SampleReader) (*WindowPartitioner, error) {
	if samples == nil {
		return nil, errors.New("window partitioner: nil sample reader")
	}
	return &WindowPartitioner{samples: samples}, nil
}

// PartitionDay returns per-window yields for the local day starting at day.
func (p *WindowPartitioner) PartitionDay(ctx context.Context, stationCode string, day time.Time, windows tariff.WindowTable) (accrual.DayPartition, error) {
	if stationCode == "" {
		return accrual.DayPartition{}, accrual.ErrEmptyStationCode
	}
	if err := windows.Validate(); err != nil {
		return accrual.DayPartition{}, err
	}

	fetched := make([]accrual.WindowSamples, 0, len(windows))
	for _, w := range windows {
		start, end := w.Bounds(day)
		samples, err := p.samples.ListSamples(ctx, stationCode, start, end)
		if err != nil {
			return accrual.DayPartition{}, fmt.Errorf("window partitioner: window %s: %w", w.Name, err)
		}
		ws := accrual.WindowSamples{Window: w, Samples: samples, Expected: w.SamplesOn(day)}
		if err := accrual.CheckWindow(ws); err != nil {
			return accrual.DayPartition{}, err
		}
		fetched = append(fetched, ws)
	}
	return accrual.Partition(fetched)
}
