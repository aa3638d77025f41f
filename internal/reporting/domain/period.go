package reporting

import (
	"sort"
	"strings"
	"time"
)

const (
	// CurrentMonthTTL applies while ledger rows for the period are still arriving.
	CurrentMonthTTL = 24 * time.Hour
	// ClosedMonthTTL applies to months that are final.
	ClosedMonthTTL = 30 * 24 * time.Hour
)

// MonthStart returns the first day of the month containing t, as a UTC civil date.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// NormalizePeriod maps periodStart to the first day of its month. A period after
// the current month of now (in loc) is clamped to the current month.
func NormalizePeriod(periodStart, now time.Time, loc *time.Location) (time.Time, error) {
	if periodStart.IsZero() {
		return time.Time{}, ErrInvalidPeriod
	}
	if loc == nil {
		loc = time.UTC
	}
	period := MonthStart(periodStart)
	current := MonthStart(now.In(loc))
	if period.After(current) {
		return current, nil
	}
	return period, nil
}

// NextMonth returns the exclusive end of the period.
func NextMonth(period time.Time) time.Time {
	return MonthStart(period).AddDate(0, 1, 0)
}

// IsCurrentMonth reports whether period is the in-progress month of now in loc.
func IsCurrentMonth(period, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	return MonthStart(period).Equal(MonthStart(now.In(loc)))
}

// CacheTTL returns the cache lifetime of a period's reports.
func CacheTTL(period, now time.Time, loc *time.Location) time.Duration {
	if IsCurrentMonth(period, now, loc) {
		return CurrentMonthTTL
	}
	return ClosedMonthTTL
}

// PeriodLabel renders a period as MM_YYYY.
func PeriodLabel(period time.Time) string {
	return period.Format("01_2006")
}

// StationReportKey is the cache key of one station's monthly report.
func StationReportKey(period time.Time, stationCode string) string {
	return "report_" + PeriodLabel(period) + "_" + stationCode
}

// SummaryKey is the cache key of a fleet summary. An empty selector means all stations.
func SummaryKey(period time.Time, stationCodes []string) string {
	return "summary_report_" + PeriodLabel(period) + "_" + selector(stationCodes)
}

func selector(stationCodes []string) string {
	codes := NormalizeStationCodes(stationCodes)
	if len(codes) == 0 {
		return "all"
	}
	return strings.Join(codes, ",")
}

// NormalizeStationCodes trims, de-duplicates and sorts station codes.
func NormalizeStationCodes(stationCodes []string) []string {
	seen := make(map[string]struct{}, len(stationCodes))
	out := make([]string, 0, len(stationCodes))
	for _, code := range stationCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
