package reporting

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	tariff "solar-billing/internal/tariff/domain"
)

var ict = time.FixedZone("ICT", 7*3600)

func TestNormalizePeriod(t *testing.T) {
	now := time.Date(2026, time.March, 5, 10, 0, 0, 0, ict)

	got, err := NormalizePeriod(time.Date(2026, time.February, 17, 0, 0, 0, 0, time.UTC), now, ict)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !got.Equal(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected period: %s", got)
	}

	got, _ = NormalizePeriod(time.Date(2026, time.December, 1, 0, 0, 0, 0, time.UTC), now, ict)
	if !got.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("future period should clamp to current month, got %s", got)
	}

	if _, err := NormalizePeriod(time.Time{}, now, ict); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestCacheTTL_UsesBillingZoneMonth(t *testing.T) {
	// 2026-03-31 20:00 UTC is already April in ICT.
	now := time.Date(2026, time.March, 31, 20, 0, 0, 0, time.UTC)
	april := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	march := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	if got := CacheTTL(april, now, ict); got != CurrentMonthTTL {
		t.Fatalf("april ttl: %s", got)
	}
	if got := CacheTTL(march, now, ict); got != ClosedMonthTTL {
		t.Fatalf("march ttl: %s", got)
	}
}

func TestCacheKeys(t *testing.T) {
	period := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if got := StationReportKey(period, "ST1"); got != "report_03_2026_ST1" {
		t.Fatalf("station key: %s", got)
	}
	if got := SummaryKey(period, nil); got != "summary_report_03_2026_all" {
		t.Fatalf("fleet key: %s", got)
	}
	if got := SummaryKey(period, []string{"ST2", " ST1", "ST2", ""}); got != "summary_report_03_2026_ST1,ST2" {
		t.Fatalf("selector key: %s", got)
	}
}

func TestNewStationReport_ProgressiveTierVolumes(t *testing.T) {
	tod, err := tariff.NewProgressiveTariff(tariff.NameProgressiveVolume,
		tariff.Adjustment{Discount: decimal.Zero, Surcharge: decimal.RequireFromString("0.1")},
		decimal.RequireFromString("3"), decimal.RequireFromString("3.5"), decimal.RequireFromString("4"))
	if err != nil {
		t.Fatalf("tariff: %v", err)
	}
	period := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	daily := []DailyLine{
		{OnDate: period, YieldTotal: decimal.NewFromInt(300), Revenue: decimal.NewFromInt(1000)},
		{OnDate: period.AddDate(0, 0, 1), YieldTotal: decimal.NewFromInt(200), Revenue: decimal.NewFromInt(700)},
	}
	report, err := NewStationReport("ST1", tod, period, daily, period)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !report.YieldTotal.Equal(decimal.NewFromInt(500)) || !report.Revenue.Equal(decimal.NewFromInt(1700)) {
		t.Fatalf("totals: yield=%s revenue=%s", report.YieldTotal, report.Revenue)
	}
	want := []int64{150, 250, 100}
	if len(report.TierVolumes) != len(want) {
		t.Fatalf("tier volumes: %+v", report.TierVolumes)
	}
	for i, v := range want {
		if !report.TierVolumes[i].Yield.Equal(decimal.NewFromInt(v)) {
			t.Fatalf("tier %d: %s", i+1, report.TierVolumes[i].Yield)
		}
	}
	if !report.LastDate.Equal(period.AddDate(0, 0, 1)) {
		t.Fatalf("last date: %s", report.LastDate)
	}
	if len(report.Tariff.Rates) != 3 || !report.Tariff.Rates[2].DiscountedRate.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("rates: %+v", report.Tariff.Rates)
	}

	if _, err := NewStationReport("ST1", tod, period, nil, period); !errors.Is(err, ErrNoLedgerEntries) {
		t.Fatalf("expected ErrNoLedgerEntries, got %v", err)
	}
}

func TestBillingSummary_EmptySlicesNotNil(t *testing.T) {
	s := NewBillingSummary(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), time.Now())
	if s.Stations == nil || s.Errors == nil {
		t.Fatalf("slices must be non-nil")
	}
	s.Fail("ST1", ErrorConfigurationMissing, errors.New("no tariff"))
	if s.HasUpstreamError() {
		t.Fatalf("configuration failure is not upstream")
	}
	s.Fail("ST2", ErrorUpstreamUnavailable, nil)
	if !s.HasUpstreamError() {
		t.Fatalf("expected upstream error")
	}
}
