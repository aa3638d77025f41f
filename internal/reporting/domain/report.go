package reporting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	tariff "solar-billing/internal/tariff/domain"
)

// RateLine is one priced rate of the station's tariff.
type RateLine struct {
	Label          string          `json:"label"`
	Rate           decimal.Decimal `json:"rate"`
	DiscountedRate decimal.Decimal `json:"discounted_rate"`
}

// TariffInfo describes the tariff a report was billed under.
type TariffInfo struct {
	Name      tariff.Name     `json:"name"`
	Family    tariff.Family   `json:"family"`
	Discount  decimal.Decimal `json:"discount"`
	Surcharge decimal.Decimal `json:"surcharge"`
	Rates     []RateLine      `json:"rates"`
}

// NewTariffInfo extracts the report view of a tariff.
func NewTariffInfo(t tariff.Tariff) TariffInfo {
	adj := t.Adjustment()
	info := TariffInfo{
		Name:      t.TariffName(),
		Family:    t.Family(),
		Discount:  adj.Discount,
		Surcharge: adj.Surcharge,
	}
	switch typed := t.(type) {
	case *tariff.FlatPeriodTariff:
		info.Rates = []RateLine{
			{Label: "off_peak", Rate: typed.OffPeakRate(), DiscountedRate: adj.DiscountedRate(typed.OffPeakRate())},
			{Label: "on_peak", Rate: typed.OnPeakRate(), DiscountedRate: adj.DiscountedRate(typed.OnPeakRate())},
		}
	case *tariff.ProgressiveTariff:
		labels := [tariff.TierCount]string{"tier1", "tier2", "tier3"}
		for i, rate := range typed.TierRates() {
			info.Rates = append(info.Rates, RateLine{Label: labels[i], Rate: rate, DiscountedRate: adj.DiscountedRate(rate)})
		}
	}
	return info
}

// DailyLine is one ledger day of a station report.
type DailyLine struct {
	OnDate       time.Time       `json:"on_date"`
	YieldOffPeak decimal.Decimal `json:"yield_off_peak"`
	YieldOnPeak  decimal.Decimal `json:"yield_on_peak"`
	YieldTotal   decimal.Decimal `json:"yield_total"`
	Revenue      decimal.Decimal `json:"revenue"`
	Consumption  decimal.Decimal `json:"consumption"`
}

// StationProfile is the master data shown on a station report.
type StationProfile struct {
	Name     string          `json:"name"`
	Capacity decimal.Decimal `json:"capacity"`
}

// DeviceLine is one installed device listed on a station report.
type DeviceLine struct {
	Name            string     `json:"name"`
	DeviceType      string     `json:"device_type"`
	ESN             string     `json:"esn,omitempty"`
	WarrantyExpires *time.Time `json:"warranty_expires,omitempty"`
}

// TierVolume is the share of the monthly total yield falling into one tier.
type TierVolume struct {
	Tier  int             `json:"tier"`
	Yield decimal.Decimal `json:"yield"`
}

// StationReport is the monthly ledger roll-up of one station.
type StationReport struct {
	StationCode  string          `json:"station_code"`
	Station      *StationProfile `json:"station,omitempty"`
	Devices      []DeviceLine    `json:"devices,omitempty"`
	Tariff       TariffInfo      `json:"tariff"`
	PeriodStart  time.Time       `json:"period_start"`
	FirstDate    time.Time       `json:"first_date"`
	LastDate     time.Time       `json:"last_date"`
	Daily        []DailyLine     `json:"daily"`
	YieldOffPeak decimal.Decimal `json:"yield_off_peak"`
	YieldOnPeak  decimal.Decimal `json:"yield_on_peak"`
	YieldTotal   decimal.Decimal `json:"yield_total"`
	Revenue      decimal.Decimal `json:"revenue"`
	Consumption  decimal.Decimal `json:"consumption"`
	TierVolumes  []TierVolume    `json:"tier_volumes,omitempty"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// NewStationReport rolls daily lines up. Revenue is the sum of stored revenue.
func NewStationReport(stationCode string, t tariff.Tariff, period time.Time, daily []DailyLine, generatedAt time.Time) (*StationReport, error) {
	if stationCode == "" {
		return nil, ErrEmptyStationCode
	}
	if len(daily) == 0 {
		return nil, ErrNoLedgerEntries
	}
	report := &StationReport{
		StationCode:  stationCode,
		Tariff:       NewTariffInfo(t),
		PeriodStart:  MonthStart(period),
		FirstDate:    daily[0].OnDate,
		LastDate:     daily[len(daily)-1].OnDate,
		Daily:        daily,
		YieldOffPeak: decimal.Zero,
		YieldOnPeak:  decimal.Zero,
		YieldTotal:   decimal.Zero,
		Revenue:      decimal.Zero,
		Consumption:  decimal.Zero,
		GeneratedAt:  generatedAt,
	}
	for _, line := range daily {
		report.YieldOffPeak = report.YieldOffPeak.Add(line.YieldOffPeak)
		report.YieldOnPeak = report.YieldOnPeak.Add(line.YieldOnPeak)
		report.YieldTotal = report.YieldTotal.Add(line.YieldTotal)
		report.Revenue = report.Revenue.Add(line.Revenue)
	}
	if t.Family() == tariff.FamilyProgressive {
		for i, volume := range tariff.SplitTiers(report.YieldTotal) {
			report.TierVolumes = append(report.TierVolumes, TierVolume{Tier: i + 1, Yield: volume})
		}
	}
	return report, nil
}

// DateKey formats the civil date used to join daily data onto ledger days.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// ApplyConsumption sets each day's consumption from byDate, keyed by DateKey.
// Days without a reading report zero.
func (r *StationReport) ApplyConsumption(byDate map[string]decimal.Decimal) {
	r.Consumption = decimal.Zero
	for i := range r.Daily {
		used, ok := byDate[DateKey(r.Daily[i].OnDate)]
		if !ok {
			used = decimal.Zero
		}
		r.Daily[i].Consumption = used
		r.Consumption = r.Consumption.Add(used)
	}
}

// StationSummary is the per-station line of a fleet summary.
type StationSummary struct {
	StationCode  string          `json:"station_code"`
	TariffName   tariff.Name     `json:"tariff_name"`
	Family       tariff.Family   `json:"family"`
	Days         int             `json:"days"`
	YieldOffPeak decimal.Decimal `json:"yield_off_peak"`
	YieldOnPeak  decimal.Decimal `json:"yield_on_peak"`
	YieldTotal   decimal.Decimal `json:"yield_total"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// Summary returns the fleet line of the report.
func (r *StationReport) Summary() StationSummary {
	return StationSummary{
		StationCode:  r.StationCode,
		TariffName:   r.Tariff.Name,
		Family:       r.Tariff.Family,
		Days:         len(r.Daily),
		YieldOffPeak: r.YieldOffPeak,
		YieldOnPeak:  r.YieldOnPeak,
		YieldTotal:   r.YieldTotal,
		Revenue:      r.Revenue,
	}
}

// BillingSummary is the fleet roll-up of a period. Stations and Errors are never nil.
type BillingSummary struct {
	PeriodStart time.Time        `json:"period_start"`
	Stations    []StationSummary `json:"stations"`
	YieldTotal  decimal.Decimal  `json:"yield_total"`
	Revenue     decimal.Decimal  `json:"revenue"`
	Errors      []StationError   `json:"errors"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// NewBillingSummary builds an empty summary for the period.
func NewBillingSummary(period, generatedAt time.Time) *BillingSummary {
	return &BillingSummary{
		PeriodStart: MonthStart(period),
		Stations:    []StationSummary{},
		YieldTotal:  decimal.Zero,
		Revenue:     decimal.Zero,
		Errors:      []StationError{},
		GeneratedAt: generatedAt,
	}
}

// Add appends a station line and updates fleet totals.
func (s *BillingSummary) Add(line StationSummary) {
	s.Stations = append(s.Stations, line)
	s.YieldTotal = s.YieldTotal.Add(line.YieldTotal)
	s.Revenue = s.Revenue.Add(line.Revenue)
}

// Fail appends an inline station failure.
func (s *BillingSummary) Fail(stationCode string, kind ErrorKind, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.Errors = append(s.Errors, StationError{StationCode: stationCode, Kind: kind, Message: msg})
}

// HasUpstreamError reports whether any station failed on an upstream read.
func (s *BillingSummary) HasUpstreamError() bool {
	for _, e := range s.Errors {
		if e.Kind == ErrorUpstreamUnavailable {
			return true
		}
	}
	return false
}

// Cache is a key/value store with per-key expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
