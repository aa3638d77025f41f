package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "billing_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheError = "error"
)

var (
	registerOnce sync.Once

	accrualRunsTotal    *prometheus.CounterVec
	accrualRunLatency   *prometheus.HistogramVec
	accrualFleetTotal   *prometheus.CounterVec
	ledgerWritesTotal   *prometheus.CounterVec
	reportRequests      *prometheus.CounterVec
	reportLatency       *prometheus.HistogramVec
	reportCacheTotal    *prometheus.CounterVec
	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers billing metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		accrualRunsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "accrual_runs_total",
				Help: "Total daily accrual runs by tariff family and outcome",
			},
			[]string{"family", "outcome"},
		)
		accrualRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "accrual_run_latency_seconds",
				Help:    "Daily accrual run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)
		accrualFleetTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "accrual_fleet_runs_total",
				Help: "Total fleet accrual runs by trigger",
			},
			[]string{"trigger"},
		)
		ledgerWritesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_writes_total",
				Help: "Total ledger writes by family and outcome",
			},
			[]string{"family", "outcome"},
		)
		reportRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_requests_total",
				Help: "Total report requests by kind and result",
			},
			[]string{"kind", "result"},
		)
		reportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_latency_seconds",
				Help:    "Report build latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind", "result"},
		)
		reportCacheTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_cache_total",
				Help: "Report cache lookups by kind and result",
			},
			[]string{"kind", "result"},
		)
		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			accrualRunsTotal,
			accrualRunLatency,
			accrualFleetTotal,
			ledgerWritesTotal,
			reportRequests,
			reportLatency,
			reportCacheTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveAccrualRun records one daily accrual run.
func ObserveAccrualRun(family, outcome string, duration time.Duration) {
	if family == "" {
		family = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	if accrualRunsTotal != nil {
		accrualRunsTotal.WithLabelValues(family, outcome).Inc()
	}
	if accrualRunLatency != nil {
		accrualRunLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// IncAccrualFleetRun counts fleet runs by trigger (http, schedule, backfill).
func IncAccrualFleetRun(trigger string) {
	if trigger == "" {
		trigger = "unknown"
	}
	if accrualFleetTotal != nil {
		accrualFleetTotal.WithLabelValues(trigger).Inc()
	}
}

// IncLedgerWrite counts ledger write outcomes.
func IncLedgerWrite(family, outcome string) {
	if family == "" {
		family = "unknown"
	}
	if ledgerWritesTotal != nil {
		ledgerWritesTotal.WithLabelValues(family, outcome).Inc()
	}
}

// ObserveReport records report latency and result.
func ObserveReport(kind, result string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportRequests != nil {
		reportRequests.WithLabelValues(kind, result).Inc()
	}
	if reportLatency != nil {
		reportLatency.WithLabelValues(kind, result).Observe(duration.Seconds())
	}
}

// IncReportCache counts cache lookups by result.
func IncReportCache(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if reportCacheTotal != nil {
		reportCacheTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	CacheHit   = cacheHit
	CacheMiss  = cacheMiss
	CacheError = cacheError
)
