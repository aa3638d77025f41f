package application

import (
	"context"
	"log"
	"time"

	"solar-billing/internal/observability/metrics"
)

// Scheduler triggers a fleet accrual run once a day at dailyAt (HH:MM, billing time zone).
type Scheduler struct {
	orchestrator *Orchestrator
	dailyAt      string
	location     *time.Location
	logger       *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(orchestrator *Orchestrator, dailyAt string, location *time.Location, logger *log.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		orchestrator: orchestrator,
		dailyAt:      dailyAt,
		location:     location,
		logger:       logger,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.orchestrator == nil {
		return
	}
	if _, _, err := parseDailyAt(s.dailyAt); err != nil {
		s.logger.Printf("accrual schedule disabled: daily_at=%q err=%v", s.dailyAt, err)
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now) {
				continue
			}
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	local := now.In(s.location)
	return local.Hour() == hour && local.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context) {
	metrics.IncAccrualFleetRun("schedule")
	if _, err := s.orchestrator.RunAll(ctx, 0); err != nil {
		s.logger.Printf("accrual schedule error: err=%v", err)
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
