package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	accrual "solar-billing/internal/accrual/domain"
	"solar-billing/internal/observability/metrics"
	tariff "solar-billing/internal/tariff/domain"
)

// Outcome classifies one accrual run.
type Outcome string

const (
	OutcomeInserted             Outcome = "inserted"
	OutcomeAlreadyBilled        Outcome = "already_billed"
	OutcomeDataIncomplete       Outcome = "data_incomplete"
	OutcomeInvalidData          Outcome = "invalid_data"
	OutcomeConfigurationMissing Outcome = "configuration_missing"
	OutcomeUnknownTariffType    Outcome = "unknown_tariff_type"
	OutcomeFailed               Outcome = "failed"
)

// Succeeded reports whether the day is billed after the run.
func (o Outcome) Succeeded() bool {
	return o == OutcomeInserted || o == OutcomeAlreadyBilled
}

// RunResult describes one (station, day) pipeline run.
type RunResult struct {
	StationCode string          `json:"station_code"`
	TariffType  string          `json:"tariff_type"`
	OnDate      time.Time       `json:"on_date"`
	Outcome     Outcome         `json:"outcome"`
	YieldTotal  decimal.Decimal `json:"yield_total"`
	Revenue     decimal.Decimal `json:"revenue"`
	Error       string          `json:"error,omitempty"`
}

// AccrualService runs the partition, price and write pipeline for one station and day.
type AccrualService struct {
	partitioner *WindowPartitioner
	tariffs     tariff.Provider
	writer      *LedgerWriter
	clock       Clock
	location    *time.Location
	logger      *log.Logger
}

// ServiceOption configures the service.
type ServiceOption func(*AccrualService)

// WithClock overrides the clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *AccrualService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLocation sets the billing time zone.
func WithLocation(loc *time.Location) ServiceOption {
	return func(s *AccrualService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) ServiceOption {
	return func(s *AccrualService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewAccrualService constructs the service.
func NewAccrualService(
	partitioner *WindowPartitioner,
	tariffs tariff.Provider,
	writer *LedgerWriter,
	opts ...ServiceOption,
) (*AccrualService, error) {
	if partitioner == nil {
		return nil, errors.New("accrual service: nil window partitioner")
	}
	if tariffs == nil {
		return nil, errors.New("accrual service: nil tariff provider")
	}
	if writer == nil {
		return nil, errors.New("accrual service: nil ledger writer")
	}
	s := &AccrualService{
		partitioner: partitioner,
		tariffs:     tariffs,
		writer:      writer,
		clock:       SystemClock{},
		location:    time.UTC,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location returns the billing time zone.
func (s *AccrualService) Location() *time.Location { return s.location }

// RunDailyAccrual bills the day dayOffset+1 days before today. Replaying a billed
// day is a no-op. The returned error is nil when the day ends up billed.
func (s *AccrualService) RunDailyAccrual(ctx context.Context, stationCode, tariffType string, dayOffset int) (RunResult, error) {
	started := time.Now()
	result := RunResult{
		StationCode: strings.TrimSpace(stationCode),
		TariffType:  strings.TrimSpace(tariffType),
		YieldTotal:  decimal.Zero,
		Revenue:     decimal.Zero,
	}
	family := ""

	err := s.run(ctx, &result, &family, dayOffset)
	if err != nil {
		result.Outcome = classify(err)
		result.Error = err.Error()
	}
	metrics.ObserveAccrualRun(family, string(result.Outcome), time.Since(started))
	s.logger.Printf("accrual run: station=%s tariff=%s on_date=%s outcome=%s revenue=%s err=%v",
		result.StationCode, result.TariffType, formatDate(result.OnDate), result.Outcome, result.Revenue, err)
	return result, err
}

func (s *AccrualService) run(ctx context.Context, result *RunResult, family *string, dayOffset int) error {
	if result.StationCode == "" {
		return accrual.ErrEmptyStationCode
	}
	day, err := accrual.BillingDay(s.clock.Now(), dayOffset, s.location)
	if err != nil {
		return err
	}
	result.OnDate = accrual.DateOnly(day)

	if result.TariffType == "" {
		return fmt.Errorf("%w: station %s has no tariff type", accrual.ErrConfigurationMissing, result.StationCode)
	}
	name, err := tariff.ParseName(result.TariffType)
	if err != nil {
		return err
	}
	t, err := s.tariffs.Tariff(ctx, name)
	if err != nil {
		if errors.Is(err, tariff.ErrTariffNotFound) {
			return fmt.Errorf("%w: %w", accrual.ErrConfigurationMissing, err)
		}
		return err
	}
	*family = string(t.Family())

	partition, err := s.partitioner.PartitionDay(ctx, result.StationCode, day, t.Windows())
	if err != nil {
		return err
	}
	quote, err := tariff.Price(t, partition.Yields)
	if err != nil {
		return err
	}
	entry, err := accrual.NewEntry(result.StationCode, day, quote)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	outcome, err := s.writer.Write(ctx, entry)
	if err != nil {
		return err
	}
	if outcome == WriteAlreadyBilled {
		result.Outcome = OutcomeAlreadyBilled
		return nil
	}
	result.Outcome = OutcomeInserted
	result.YieldTotal = quote.YieldTotal
	result.Revenue = quote.Revenue
	return nil
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, accrual.ErrDataIncomplete):
		return OutcomeDataIncomplete
	case errors.Is(err, tariff.ErrNegativeYield), errors.Is(err, accrual.ErrNegativeValue):
		return OutcomeInvalidData
	case errors.Is(err, accrual.ErrConfigurationMissing):
		return OutcomeConfigurationMissing
	case errors.Is(err, tariff.ErrUnknownTariffType), errors.Is(err, tariff.ErrEmptyTariffName):
		return OutcomeUnknownTariffType
	default:
		return OutcomeFailed
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
