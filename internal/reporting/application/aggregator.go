package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	accrual "solar-billing/internal/accrual/domain"
	masterdata "solar-billing/internal/masterdata/domain"
	"solar-billing/internal/observability/metrics"
	reporting "solar-billing/internal/reporting/domain"
	tariff "solar-billing/internal/tariff/domain"
)

const (
	kindStation = "station"
	kindSummary = "summary"

	defaultConcurrency = 4
)

// Aggregator rolls ledger entries up into monthly reports behind a read-through cache.
type Aggregator struct {
	assignments AssignmentReader
	tariffs     TariffProvider
	ledger      LedgerReader
	stations    StationDirectory
	consumption ConsumptionReader
	cache       reporting.Cache
	clock       Clock
	location    *time.Location
	concurrency int
	logger      *log.Logger
}

// Option configures the aggregator.
type Option func(*Aggregator)

// WithCache enables the read-through cache.
func WithCache(cache reporting.Cache) Option {
	return func(a *Aggregator) {
		a.cache = cache
	}
}

// WithStationDirectory adds station profile and devices to station reports.
func WithStationDirectory(stations StationDirectory) Option {
	return func(a *Aggregator) {
		a.stations = stations
	}
}

// WithConsumptionReader adds daily consumption to station reports.
func WithConsumptionReader(reader ConsumptionReader) Option {
	return func(a *Aggregator) {
		a.consumption = reader
	}
}

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// WithLocation sets the billing time zone used to find the current month.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithConcurrency bounds concurrent station roll-ups in a summary.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAggregator constructs an aggregator.
func NewAggregator(assignments AssignmentReader, tariffs TariffProvider, ledger LedgerReader, opts ...Option) (*Aggregator, error) {
	if assignments == nil {
		return nil, errors.New("report aggregator: nil assignment reader")
	}
	if tariffs == nil {
		return nil, errors.New("report aggregator: nil tariff provider")
	}
	if ledger == nil {
		return nil, errors.New("report aggregator: nil ledger reader")
	}
	a := &Aggregator{
		assignments: assignments,
		tariffs:     tariffs,
		ledger:      ledger,
		clock:       systemClock{},
		location:    time.UTC,
		concurrency: defaultConcurrency,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// GetStationReport returns one station's monthly report.
func (a *Aggregator) GetStationReport(ctx context.Context, periodStart time.Time, stationCode string) (*reporting.StationReport, error) {
	start := time.Now()
	report, err := a.getStationReport(ctx, periodStart, stationCode)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReport(kindStation, result, time.Since(start))
	return report, err
}

func (a *Aggregator) getStationReport(ctx context.Context, periodStart time.Time, stationCode string) (*reporting.StationReport, error) {
	stationCode = strings.TrimSpace(stationCode)
	if stationCode == "" {
		return nil, reporting.ErrEmptyStationCode
	}
	now := a.clock.Now()
	period, err := reporting.NormalizePeriod(periodStart, now, a.location)
	if err != nil {
		return nil, err
	}
	key := reporting.StationReportKey(period, stationCode)

	var cached reporting.StationReport
	if a.readCache(ctx, kindStation, key, &cached) {
		return &cached, nil
	}

	assignment, err := a.assignments.AssignmentFor(ctx, stationCode)
	if err != nil {
		return nil, fmt.Errorf("%w: assignment: %w", reporting.ErrUpstreamUnavailable, err)
	}
	if assignment == nil {
		return nil, fmt.Errorf("%w: station %s has no billing assignment", accrual.ErrConfigurationMissing, stationCode)
	}
	report, err := a.buildStationReport(ctx, period, *assignment, now)
	if err == nil {
		err = a.enrichStationReport(ctx, report, period)
	}
	if err != nil {
		a.logger.Printf("report station: station=%s period=%s err=%v", stationCode, reporting.PeriodLabel(period), err)
		return nil, err
	}
	a.writeCache(ctx, key, report, reporting.CacheTTL(period, now, a.location))
	return report, nil
}

// GetFleetSummary returns the monthly summary of the given stations, or of every
// assigned station when stationCodes is empty. Per-station failures are reported
// inline in the summary's errors.
func (a *Aggregator) GetFleetSummary(ctx context.Context, periodStart time.Time, stationCodes []string) (*reporting.BillingSummary, error) {
	start := time.Now()
	summary, err := a.getFleetSummary(ctx, periodStart, stationCodes)
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.ObserveReport(kindSummary, result, time.Since(start))
	return summary, err
}

func (a *Aggregator) getFleetSummary(ctx context.Context, periodStart time.Time, stationCodes []string) (*reporting.BillingSummary, error) {
	now := a.clock.Now()
	period, err := reporting.NormalizePeriod(periodStart, now, a.location)
	if err != nil {
		return nil, err
	}
	codes := reporting.NormalizeStationCodes(stationCodes)
	key := reporting.SummaryKey(period, codes)

	var cached reporting.BillingSummary
	if a.readCache(ctx, kindSummary, key, &cached) {
		return &cached, nil
	}

	targets, err := a.resolveTargets(ctx, codes)
	if err != nil {
		return nil, err
	}

	type outcome struct {
		line reporting.StationSummary
		err  error
	}
	outcomes := make([]outcome, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if target.err != nil {
				outcomes[i] = outcome{err: target.err}
				return nil
			}
			report, err := a.buildStationReport(gctx, period, target.assignment, now)
			if err != nil {
				outcomes[i] = outcome{err: err}
				return nil
			}
			outcomes[i] = outcome{line: report.Summary()}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := reporting.NewBillingSummary(period, now)
	for i, o := range outcomes {
		if o.err != nil {
			kind := Classify(o.err)
			summary.Fail(targets[i].stationCode, kind, o.err)
			a.logger.Printf("report summary: station=%s period=%s kind=%s err=%v", targets[i].stationCode, reporting.PeriodLabel(period), kind, o.err)
			continue
		}
		summary.Add(o.line)
	}

	if summary.HasUpstreamError() {
		a.logger.Printf("report summary: key=%s not cached, upstream errors present", key)
		return summary, nil
	}
	a.writeCache(ctx, key, summary, reporting.CacheTTL(period, now, a.location))
	return summary, nil
}

type target struct {
	stationCode string
	assignment  masterdata.TariffAssignment
	err         error
}

// resolveTargets returns one target per station, sorted by station code.
func (a *Aggregator) resolveTargets(ctx context.Context, codes []string) ([]target, error) {
	if len(codes) == 0 {
		assignments, err := a.assignments.ListBillingAssignments(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: list assignments: %w", reporting.ErrUpstreamUnavailable, err)
		}
		byStation := make(map[string]masterdata.TariffAssignment)
		for _, assignment := range masterdata.Dedupe(assignments) {
			existing, ok := byStation[assignment.StationCode]
			if !ok || (!existing.HasTariff() && assignment.HasTariff()) {
				byStation[assignment.StationCode] = assignment
			}
		}
		targets := make([]target, 0, len(byStation))
		for station, assignment := range byStation {
			targets = append(targets, target{stationCode: station, assignment: assignment})
		}
		sort.Slice(targets, func(i, j int) bool { return targets[i].stationCode < targets[j].stationCode })
		return targets, nil
	}

	targets := make([]target, 0, len(codes))
	for _, code := range codes {
		t := target{stationCode: code}
		assignment, err := a.assignments.AssignmentFor(ctx, code)
		switch {
		case err != nil:
			t.err = fmt.Errorf("%w: assignment: %w", reporting.ErrUpstreamUnavailable, err)
		case assignment == nil:
			t.err = fmt.Errorf("%w: station %s has no billing assignment", accrual.ErrConfigurationMissing, code)
		default:
			t.assignment = *assignment
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func (a *Aggregator) buildStationReport(ctx context.Context, period time.Time, assignment masterdata.TariffAssignment, now time.Time) (*reporting.StationReport, error) {
	if !assignment.HasTariff() {
		return nil, fmt.Errorf("%w: station %s has no tariff type", accrual.ErrConfigurationMissing, assignment.StationCode)
	}
	name, err := tariff.ParseName(assignment.TariffType)
	if err != nil {
		return nil, err
	}
	t, err := a.tariffs.Tariff(ctx, name)
	if err != nil {
		if errors.Is(err, tariff.ErrTariffNotFound) {
			return nil, fmt.Errorf("%w: %w", accrual.ErrConfigurationMissing, err)
		}
		return nil, fmt.Errorf("%w: tariff: %w", reporting.ErrUpstreamUnavailable, err)
	}

	from, to := period, reporting.NextMonth(period)
	var daily []reporting.DailyLine
	switch t.Family() {
	case tariff.FamilyFlatPeriod:
		entries, err := a.ledger.ListFlatPeriod(ctx, assignment.StationCode, from, to)
		if err != nil {
			return nil, fmt.Errorf("%w: ledger: %w", reporting.ErrUpstreamUnavailable, err)
		}
		daily = make([]reporting.DailyLine, 0, len(entries))
		for _, e := range entries {
			daily = append(daily, reporting.DailyLine{
				OnDate:       e.OnDate,
				YieldOffPeak: e.YieldOffPeak,
				YieldOnPeak:  e.YieldOnPeak,
				YieldTotal:   e.YieldTotal,
				Revenue:      e.Revenue,
			})
		}
	case tariff.FamilyProgressive:
		entries, err := a.ledger.ListProgressive(ctx, assignment.StationCode, from, to)
		if err != nil {
			return nil, fmt.Errorf("%w: ledger: %w", reporting.ErrUpstreamUnavailable, err)
		}
		daily = make([]reporting.DailyLine, 0, len(entries))
		for _, e := range entries {
			daily = append(daily, reporting.DailyLine{
				OnDate:     e.OnDate,
				YieldTotal: e.YieldTotal,
				Revenue:    e.Revenue,
			})
		}
	default:
		return nil, fmt.Errorf("%w: family %q", tariff.ErrUnknownTariffType, t.Family())
	}
	if len(daily) == 0 {
		return nil, fmt.Errorf("%w: station %s period %s", reporting.ErrNoLedgerEntries, assignment.StationCode, reporting.PeriodLabel(period))
	}
	return reporting.NewStationReport(assignment.StationCode, t, period, daily, now)
}

// enrichStationReport attaches master data and consumption. An unknown station
// profile leaves the report without one.
func (a *Aggregator) enrichStationReport(ctx context.Context, report *reporting.StationReport, period time.Time) error {
	if a.stations != nil {
		station, err := a.stations.Station(ctx, report.StationCode)
		if err != nil {
			return fmt.Errorf("%w: station profile: %w", reporting.ErrUpstreamUnavailable, err)
		}
		if station != nil {
			report.Station = &reporting.StationProfile{Name: station.Name, Capacity: station.Capacity}
		}
		devices, err := a.stations.Devices(ctx, report.StationCode)
		if err != nil {
			return fmt.Errorf("%w: devices: %w", reporting.ErrUpstreamUnavailable, err)
		}
		for _, d := range devices {
			report.Devices = append(report.Devices, reporting.DeviceLine{
				Name:            d.Name,
				DeviceType:      d.DeviceType,
				ESN:             d.ESN,
				WarrantyExpires: d.WarrantyExpires,
			})
		}
	}
	if a.consumption != nil {
		from := accrual.LocalDay(period, a.location)
		to := accrual.LocalDay(reporting.NextMonth(period), a.location)
		rows, err := a.consumption.ListDailyConsumption(ctx, report.StationCode, from, to)
		if err != nil {
			return fmt.Errorf("%w: consumption: %w", reporting.ErrUpstreamUnavailable, err)
		}
		byDate := make(map[string]decimal.Decimal, len(rows))
		for _, row := range rows {
			key := reporting.DateKey(row.CollectTime.In(a.location))
			byDate[key] = byDate[key].Add(row.Energy())
		}
		report.ApplyConsumption(byDate)
	}
	return nil
}

// Classify maps a report error to its inline kind.
func Classify(err error) reporting.ErrorKind {
	switch {
	case errors.Is(err, accrual.ErrConfigurationMissing), errors.Is(err, tariff.ErrEmptyTariffName):
		return reporting.ErrorConfigurationMissing
	case errors.Is(err, tariff.ErrUnknownTariffType):
		return reporting.ErrorUnknownTariffType
	case errors.Is(err, reporting.ErrNoLedgerEntries):
		return reporting.ErrorNoLedgerEntries
	default:
		return reporting.ErrorUpstreamUnavailable
	}
}

func (a *Aggregator) readCache(ctx context.Context, kind, key string, out any) bool {
	if a.cache == nil {
		return false
	}
	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		metrics.IncReportCache(kind, metrics.CacheError)
		a.logger.Printf("report cache get error: key=%s err=%v", key, err)
		return false
	}
	if !ok {
		metrics.IncReportCache(kind, metrics.CacheMiss)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.IncReportCache(kind, metrics.CacheError)
		a.logger.Printf("report cache decode error: key=%s err=%v", key, err)
		return false
	}
	metrics.IncReportCache(kind, metrics.CacheHit)
	return true
}

func (a *Aggregator) writeCache(ctx context.Context, key string, value any, ttl time.Duration) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Printf("report cache encode error: key=%s err=%v", key, err)
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		a.logger.Printf("report cache set error: key=%s err=%v", key, err)
	}
}
