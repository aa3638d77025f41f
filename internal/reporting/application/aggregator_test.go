package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	accrual "solar-billing/internal/accrual/domain"
	ledgermemory "solar-billing/internal/accrual/infrastructure/memory"
	masterdata "solar-billing/internal/masterdata/domain"
	assignmentmemory "solar-billing/internal/masterdata/infrastructure/memory"
	reporting "solar-billing/internal/reporting/domain"
	cachememory "solar-billing/internal/reporting/infrastructure/memory"
	tariff "solar-billing/internal/tariff/domain"
	tariffmemory "solar-billing/internal/tariff/infrastructure/memory"
	telemetrymemory "solar-billing/internal/telemetry/infrastructure/memory"
)

var billingZone = time.FixedZone("ICT", 7*3600)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type fixture struct {
	ledger      *ledgermemory.LedgerRepository
	cache       *cachememory.Cache
	assignments *assignmentmemory.AssignmentRepository
	tariffs     *tariffmemory.Catalog
	aggregator  *Aggregator
	period      time.Time
	now         time.Time
}

func newFixture(t *testing.T, assignments ...masterdata.TariffAssignment) fixture {
	t.Helper()
	flat, err := tariff.NewFlatPeriodTariff(
		tariff.NameFlatPeriodFixed,
		tariff.Adjustment{Discount: decimal.RequireFromString("0.1"), Surcharge: decimal.RequireFromString("0.2")},
		decimal.RequireFromString("4.0"),
		decimal.RequireFromString("5.0"),
		tariff.DefaultFixedWindows(),
	)
	if err != nil {
		t.Fatalf("flat tariff: %v", err)
	}
	tod, err := tariff.NewProgressiveTariff(
		tariff.NameProgressiveVolume,
		tariff.Adjustment{Discount: decimal.Zero, Surcharge: decimal.RequireFromString("0.1")},
		decimal.RequireFromString("3.0"),
		decimal.RequireFromString("3.5"),
		decimal.RequireFromString("4.0"),
	)
	if err != nil {
		t.Fatalf("tod tariff: %v", err)
	}
	catalog, err := tariffmemory.NewCatalog(flat, tod)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	now := time.Date(2026, time.March, 20, 10, 0, 0, 0, billingZone)
	ledger := ledgermemory.NewLedgerRepository()
	cache := cachememory.NewCache(func() time.Time { return now })
	assignmentRepo := assignmentmemory.NewAssignmentRepository(assignments...)
	aggregator, err := NewAggregator(assignmentRepo, catalog, ledger,
		WithCache(cache),
		WithClock(fixedClock{now: now}),
		WithLocation(billingZone),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	return fixture{
		ledger:      ledger,
		cache:       cache,
		assignments: assignmentRepo,
		tariffs:     catalog,
		aggregator:  aggregator,
		period:      time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		now:         now,
	}
}

func (f fixture) insertFlat(t *testing.T, station string, day int, off, on, revenue string) {
	t.Helper()
	entry, err := accrual.NewFlatPeriodEntry(station, f.period.AddDate(0, 0, day-1),
		decimal.RequireFromString(off), decimal.RequireFromString(on), decimal.RequireFromString(revenue))
	if err != nil {
		t.Fatalf("flat entry: %v", err)
	}
	if err := f.ledger.Insert(context.Background(), entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func (f fixture) insertProgressive(t *testing.T, station string, onDate time.Time, total, revenue string) {
	t.Helper()
	entry, err := accrual.NewProgressiveEntry(station, onDate,
		decimal.RequireFromString(total), decimal.RequireFromString(revenue))
	if err != nil {
		t.Fatalf("progressive entry: %v", err)
	}
	if err := f.ledger.Insert(context.Background(), entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestGetFleetSummary_MissingTariffIsInlineError(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST1"})

	summary, err := f.aggregator.GetFleetSummary(context.Background(), f.period, nil)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Stations == nil || len(summary.Stations) != 0 {
		t.Fatalf("expected empty stations, got %+v", summary.Stations)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("expected one error, got %+v", summary.Errors)
	}
	if summary.Errors[0].StationCode != "ST1" || summary.Errors[0].Kind != reporting.ErrorConfigurationMissing {
		t.Fatalf("unexpected error entry: %+v", summary.Errors[0])
	}
}

func TestGetFleetSummary_SumsStoredRevenue(t *testing.T) {
	f := newFixture(t,
		masterdata.TariffAssignment{StationCode: "ST2", TariffType: "TOD"},
		masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"},
		masterdata.TariffAssignment{StationCode: "ST3", TariffType: "FLAT"},
		masterdata.TariffAssignment{StationCode: "ST4", TariffType: "TOD"},
	)
	f.insertFlat(t, "ST1", 1, "100", "50", "615")
	f.insertFlat(t, "ST1", 2, "10", "5", "61.5")
	// Stored revenue is trusted even when it differs from a fresh price.
	f.insertProgressive(t, "ST2", f.period.AddDate(0, 0, 2), "500", "999")
	f.insertProgressive(t, "ST2", f.period.AddDate(0, 1, 0), "500", "1775")

	summary, err := f.aggregator.GetFleetSummary(context.Background(), f.period, nil)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Stations) != 2 {
		t.Fatalf("expected two stations, got %+v", summary.Stations)
	}
	if summary.Stations[0].StationCode != "ST1" || summary.Stations[1].StationCode != "ST2" {
		t.Fatalf("stations not sorted: %+v", summary.Stations)
	}
	if !summary.Stations[0].Revenue.Equal(decimal.RequireFromString("676.5")) || summary.Stations[0].Days != 2 {
		t.Fatalf("ST1 line: %+v", summary.Stations[0])
	}
	if !summary.Stations[1].Revenue.Equal(decimal.NewFromInt(999)) || summary.Stations[1].Days != 1 {
		t.Fatalf("ST2 line: %+v", summary.Stations[1])
	}
	if !summary.Revenue.Equal(decimal.RequireFromString("1675.5")) || !summary.YieldTotal.Equal(decimal.NewFromInt(665)) {
		t.Fatalf("fleet totals: revenue=%s yield=%s", summary.Revenue, summary.YieldTotal)
	}

	kinds := map[string]reporting.ErrorKind{}
	for _, e := range summary.Errors {
		kinds[e.StationCode] = e.Kind
	}
	if kinds["ST3"] != reporting.ErrorUnknownTariffType || kinds["ST4"] != reporting.ErrorNoLedgerEntries {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}
}

func TestGetFleetSummary_CacheHitAndTTL(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"})
	f.insertFlat(t, "ST1", 1, "100", "50", "615")

	first, err := f.aggregator.GetFleetSummary(context.Background(), f.period, nil)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	key := reporting.SummaryKey(f.period, nil)
	if ttl, ok := f.cache.TTL(key); !ok || ttl != reporting.CurrentMonthTTL {
		t.Fatalf("current month ttl: ok=%v ttl=%s", ok, ttl)
	}

	f.insertFlat(t, "ST1", 2, "10", "5", "61.5")
	second, err := f.aggregator.GetFleetSummary(context.Background(), f.period, nil)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Revenue.Equal(first.Revenue) || len(second.Stations) != 1 || second.Stations[0].Days != 1 {
		t.Fatalf("expected cached summary, got %+v", second)
	}

	february := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.aggregator.GetFleetSummary(context.Background(), february, nil); err != nil {
		t.Fatalf("february: %v", err)
	}
	if ttl, ok := f.cache.TTL(reporting.SummaryKey(february, nil)); !ok || ttl != reporting.ClosedMonthTTL {
		t.Fatalf("closed month ttl: ok=%v ttl=%s", ok, ttl)
	}
}

func TestGetFleetSummary_UpstreamErrorsAreNotCached(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"})
	f.insertFlat(t, "ST1", 1, "100", "50", "615")
	f.ledger.FailListsWith(errors.New("connection refused"))

	summary, err := f.aggregator.GetFleetSummary(context.Background(), f.period, nil)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Kind != reporting.ErrorUpstreamUnavailable {
		t.Fatalf("expected upstream error, got %+v", summary.Errors)
	}
	if f.cache.Len() != 0 {
		t.Fatalf("summary with upstream errors must not be cached")
	}

	f.ledger.FailListsWith(nil)
	summary, err = f.aggregator.GetFleetSummary(context.Background(), f.period, nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(summary.Stations) != 1 || len(summary.Errors) != 0 {
		t.Fatalf("retry should recompute: %+v", summary)
	}
}

func TestGetFleetSummary_SelectorAndListFailure(t *testing.T) {
	f := newFixture(t,
		masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"},
		masterdata.TariffAssignment{StationCode: "ST2", TariffType: "TOU_FIX_TIME"},
	)
	f.insertFlat(t, "ST1", 1, "100", "50", "615")
	f.insertFlat(t, "ST2", 1, "1", "1", "9")

	summary, err := f.aggregator.GetFleetSummary(context.Background(), f.period, []string{"ST2", "ST9"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Stations) != 1 || summary.Stations[0].StationCode != "ST2" {
		t.Fatalf("unexpected stations: %+v", summary.Stations)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].StationCode != "ST9" || summary.Errors[0].Kind != reporting.ErrorConfigurationMissing {
		t.Fatalf("unexpected errors: %+v", summary.Errors)
	}
	if _, ok, _ := f.cache.Get(context.Background(), "summary_report_03_2026_ST2,ST9"); !ok {
		t.Fatalf("selector summary should be cached")
	}

	f.assignments.FailWith(errors.New("db down"))
	if _, err := f.aggregator.GetFleetSummary(context.Background(), f.period.AddDate(0, -1, 0), nil); !errors.Is(err, reporting.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGetStationReport(t *testing.T) {
	f := newFixture(t,
		masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"},
		masterdata.TariffAssignment{StationCode: "ST2", TariffType: "TOD"},
	)
	f.insertFlat(t, "ST1", 1, "100", "50", "615")
	f.insertFlat(t, "ST1", 3, "10", "5", "61.5")

	report, err := f.aggregator.GetStationReport(context.Background(), f.period.AddDate(0, 0, 14), "ST1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !report.Revenue.Equal(decimal.RequireFromString("676.5")) || !report.YieldOffPeak.Equal(decimal.NewFromInt(110)) {
		t.Fatalf("totals: %+v", report)
	}
	if !report.FirstDate.Equal(f.period) || !report.LastDate.Equal(f.period.AddDate(0, 0, 2)) {
		t.Fatalf("dates: first=%s last=%s", report.FirstDate, report.LastDate)
	}
	if report.Tariff.Name != tariff.NameFlatPeriodFixed || !report.Tariff.Rates[0].DiscountedRate.Equal(decimal.RequireFromString("3.6")) {
		t.Fatalf("tariff info: %+v", report.Tariff)
	}
	if _, ok := f.cache.TTL(reporting.StationReportKey(f.period, "ST1")); !ok {
		t.Fatalf("station report should be cached")
	}

	if _, err := f.aggregator.GetStationReport(context.Background(), f.period, "ST2"); !errors.Is(err, reporting.ErrNoLedgerEntries) {
		t.Fatalf("expected ErrNoLedgerEntries, got %v", err)
	}
	if _, err := f.aggregator.GetStationReport(context.Background(), f.period, "ST9"); !errors.Is(err, accrual.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
	if _, err := f.aggregator.GetStationReport(context.Background(), f.period, " "); !errors.Is(err, reporting.ErrEmptyStationCode) {
		t.Fatalf("expected ErrEmptyStationCode, got %v", err)
	}
}

func TestGetStationReport_StationProfileAndConsumption(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"})
	f.insertFlat(t, "ST1", 1, "100", "50", "615")
	f.insertFlat(t, "ST1", 2, "10", "5", "61.5")

	directory := assignmentmemory.NewStationDirectory()
	if err := directory.PutStation(masterdata.Station{Code: "ST1", Name: "Roof A", Capacity: decimal.RequireFromString("49.5")}); err != nil {
		t.Fatalf("put station: %v", err)
	}
	warranty := time.Date(2030, time.June, 1, 0, 0, 0, 0, time.UTC)
	directory.AddDevices("ST1",
		masterdata.Device{Name: "INV-1", DeviceType: "Inverter", ESN: "ES123", WarrantyExpires: &warranty},
		masterdata.Device{Name: "METER-1", DeviceType: "Meter"},
	)
	consumption := telemetrymemory.NewConsumptionStore()
	// Rows are stamped at local midnight; the second lands on March 1 in UTC but March 2 locally.
	consumption.AddDay("ST1", time.Date(2026, time.March, 1, 0, 0, 0, 0, billingZone), 80)
	consumption.AddDay("ST1", time.Date(2026, time.March, 2, 0, 0, 0, 0, billingZone), 12.5)
	consumption.AddDay("ST1", time.Date(2026, time.April, 1, 0, 0, 0, 0, billingZone), 999)

	aggregator, err := NewAggregator(f.assignments, f.tariffs, f.ledger,
		WithStationDirectory(directory),
		WithConsumptionReader(consumption),
		WithClock(fixedClock{now: f.now}),
		WithLocation(billingZone),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}

	report, err := aggregator.GetStationReport(context.Background(), f.period, "ST1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Station == nil || report.Station.Name != "Roof A" || !report.Station.Capacity.Equal(decimal.RequireFromString("49.5")) {
		t.Fatalf("station profile: %+v", report.Station)
	}
	if len(report.Devices) != 2 || report.Devices[0].Name != "INV-1" || report.Devices[0].WarrantyExpires == nil {
		t.Fatalf("devices: %+v", report.Devices)
	}
	if !report.Daily[0].Consumption.Equal(decimal.NewFromInt(80)) || !report.Daily[1].Consumption.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("daily consumption: %+v", report.Daily)
	}
	if !report.Consumption.Equal(decimal.RequireFromString("92.5")) {
		t.Fatalf("consumption total: %s", report.Consumption)
	}
	if !report.Revenue.Equal(decimal.RequireFromString("676.5")) {
		t.Fatalf("revenue must stay the stored sum: %s", report.Revenue)
	}

	directory.FailWith(errors.New("masterdata down"))
	other := f.period.AddDate(0, -1, 0)
	f.insertFlat(t, "ST1", -5, "1", "1", "9")
	if _, err := aggregator.GetStationReport(context.Background(), other, "ST1"); !errors.Is(err, reporting.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGetStationReport_UnknownProfileIsOmitted(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"})
	f.insertFlat(t, "ST1", 1, "100", "50", "615")

	aggregator, err := NewAggregator(f.assignments, f.tariffs, f.ledger,
		WithStationDirectory(assignmentmemory.NewStationDirectory()),
		WithConsumptionReader(telemetrymemory.NewConsumptionStore()),
		WithClock(fixedClock{now: f.now}),
		WithLocation(billingZone),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	report, err := aggregator.GetStationReport(context.Background(), f.period, "ST1")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Station != nil || len(report.Devices) != 0 {
		t.Fatalf("expected no profile, got %+v %+v", report.Station, report.Devices)
	}
	if !report.Consumption.IsZero() || !report.Daily[0].Consumption.IsZero() {
		t.Fatalf("expected zero consumption, got %s", report.Consumption)
	}
}

func TestGetStationReport_FuturePeriodClampsToCurrentMonth(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST2", TariffType: "TOD"})
	f.insertProgressive(t, "ST2", f.period.AddDate(0, 0, 4), "500", "1775")

	report, err := f.aggregator.GetStationReport(context.Background(), time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), "ST2")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !report.PeriodStart.Equal(f.period) {
		t.Fatalf("expected clamp to %s, got %s", f.period, report.PeriodStart)
	}
	if len(report.TierVolumes) != tariff.TierCount || !report.TierVolumes[2].Yield.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("tier volumes: %+v", report.TierVolumes)
	}
}

func TestGetStationReport_CacheFailureIsAMiss(t *testing.T) {
	f := newFixture(t, masterdata.TariffAssignment{StationCode: "ST1", TariffType: "TOU_FIX_TIME"})
	f.insertFlat(t, "ST1", 1, "100", "50", "615")
	f.cache.FailWith(errors.New("cache down"))

	report, err := f.aggregator.GetStationReport(context.Background(), f.period, "ST1")
	if err != nil {
		t.Fatalf("cache failure must not fail the report: %v", err)
	}
	if !report.Revenue.Equal(decimal.NewFromInt(615)) {
		t.Fatalf("revenue: %s", report.Revenue)
	}
}

func TestClassify(t *testing.T) {
	cases := map[error]reporting.ErrorKind{
		accrual.ErrConfigurationMissing:  reporting.ErrorConfigurationMissing,
		tariff.ErrUnknownTariffType:      reporting.ErrorUnknownTariffType,
		reporting.ErrNoLedgerEntries:     reporting.ErrorNoLedgerEntries,
		reporting.ErrUpstreamUnavailable: reporting.ErrorUpstreamUnavailable,
		errors.New("other"):              reporting.ErrorUpstreamUnavailable,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("classify %v: got %s want %s", err, got, want)
		}
	}
}
