package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	telemetry "solar-billing/internal/telemetry/domain"
)

// ConsumptionStore is an in-memory consumption reader for tests and demos.
type ConsumptionStore struct {
	mu   sync.RWMutex
	rows map[string][]telemetry.DailyConsumption
	err  error
}

// NewConsumptionStore constructs a store.
func NewConsumptionStore() *ConsumptionStore {
	return &ConsumptionStore{rows: make(map[string][]telemetry.DailyConsumption)}
}

// AddDay records the consumption of the day starting at dayStart.
func (s *ConsumptionStore) AddDay(stationCode string, dayStart time.Time, usePower float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value := usePower
	s.rows[stationCode] = append(s.rows[stationCode], telemetry.DailyConsumption{
		StationCode: stationCode,
		CollectTime: dayStart,
		UsePower:    &value,
	})
}

// FailWith makes every call return err.
func (s *ConsumptionStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// ListDailyConsumption returns rows with collect time in [start, end), ordered by time.
func (s *ConsumptionStore) ListDailyConsumption(ctx context.Context, stationCode string, start, end time.Time) ([]telemetry.DailyConsumption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []telemetry.DailyConsumption
	for _, row := range s.rows[stationCode] {
		if !row.CollectTime.Before(start) && row.CollectTime.Before(end) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectTime.Before(out[j].CollectTime) })
	return out, nil
}
