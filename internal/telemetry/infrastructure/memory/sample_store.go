package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	telemetry "solar-billing/internal/telemetry/domain"
)

// SampleStore is an in-memory sample reader for tests and demos.
type SampleStore struct {
	mu      sync.RWMutex
	samples map[string][]telemetry.GenerationSample
}

// NewSampleStore constructs a store.
func NewSampleStore() *SampleStore {
	return &SampleStore{samples: make(map[string][]telemetry.GenerationSample)}
}

// Add appends samples.
func (s *SampleStore) Add(samples ...telemetry.GenerationSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sample := range samples {
		s.samples[sample.StationCode] = append(s.samples[sample.StationCode], sample)
	}
}

// AddHourly adds one sample per hour in [start, end) with the same power.
func (s *SampleStore) AddHourly(stationCode string, start, end time.Time, power float64) {
	for at := start; at.Before(end); at = at.Add(time.Hour) {
		value := power
		s.Add(telemetry.GenerationSample{StationCode: stationCode, CollectTime: at, InverterPower: &value})
	}
}

// ListSamples returns samples with collect time in [start, end), ordered by time.
func (s *SampleStore) ListSamples(ctx context.Context, stationCode string, start, end time.Time) ([]telemetry.GenerationSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []telemetry.GenerationSample
	for _, sample := range s.samples[stationCode] {
		if !sample.CollectTime.Before(start) && sample.CollectTime.Before(end) {
			out = append(out, sample)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectTime.Before(out[j].CollectTime) })
	return out, nil
}
