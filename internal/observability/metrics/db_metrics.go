package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const ledgerStatsTimeout = 5 * time.Second

// ledgerStats is one family's ledger size and most recent billed day.
type ledgerStats struct {
	Rows   int64
	Latest *time.Time
}

type ledgerStatsFunc func(ctx context.Context, table string) (ledgerStats, error)

// ledgerCollector reports per-family ledger rows and how many days behind the
// newest billed day is. A family with no rows reports no lag sample.
type ledgerCollector struct {
	tables map[string]string // family -> table
	stats  ledgerStatsFunc
	now    func() time.Time
	logger *log.Logger

	rows *prometheus.Desc
	lag  *prometheus.Desc
}

func newLedgerCollector(tables map[string]string, stats ledgerStatsFunc, now func() time.Time, logger *log.Logger) *ledgerCollector {
	return &ledgerCollector{
		tables: tables,
		stats:  stats,
		now:    now,
		logger: logger,
		rows: prometheus.NewDesc(metricPrefix+"ledger_rows",
			"Billed ledger rows by tariff family", []string{"family"}, nil),
		lag: prometheus.NewDesc(metricPrefix+"ledger_latest_day_lag_days",
			"Days between today and the newest billed day by tariff family", []string{"family"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *ledgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rows
	ch <- c.lag
}

// Collect implements prometheus.Collector.
func (c *ledgerCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerStatsTimeout)
	defer cancel()

	today := dateOnly(c.now())
	for family, table := range c.tables {
		stats, err := c.stats(ctx, table)
		if err != nil {
			if c.logger != nil {
				c.logger.Printf("metrics ledger stats failed: family=%s err=%v", family, err)
			}
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.rows, prometheus.GaugeValue, float64(stats.Rows), family)
		if stats.Latest == nil {
			continue
		}
		lag := today.Sub(dateOnly(*stats.Latest)).Hours() / 24
		if lag < 0 {
			lag = 0
		}
		ch <- prometheus.MustNewConstMetric(c.lag, prometheus.GaugeValue, lag, family)
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	tables := map[string]string{
		"flat_period":        "ledger_flat_period",
		"progressive_volume": "ledger_progressive",
	}
	prometheus.MustRegister(newLedgerCollector(tables, sqlLedgerStats(db), time.Now, logger))
}

func sqlLedgerStats(db *sql.DB) ledgerStatsFunc {
	return func(ctx context.Context, table string) (ledgerStats, error) {
		if db == nil {
			return ledgerStats{}, nil
		}
		var (
			stats  ledgerStats
			latest sql.NullTime
		)
		query := fmt.Sprintf("SELECT COUNT(*), MAX(on_date) FROM %s", table)
		if err := db.QueryRowContext(ctx, query).Scan(&stats.Rows, &latest); err != nil {
			return ledgerStats{}, err
		}
		if latest.Valid {
			day := latest.Time
			stats.Latest = &day
		}
		return stats, nil
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
