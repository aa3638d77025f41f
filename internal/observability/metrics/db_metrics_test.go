package metrics

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerCollector(t *testing.T) {
	latest := time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)
	stats := map[string]ledgerStats{
		"ledger_flat_period": {Rows: 12, Latest: &latest},
		"ledger_progressive": {},
	}
	var buf bytes.Buffer
	collector := newLedgerCollector(
		map[string]string{
			"flat_period":        "ledger_flat_period",
			"progressive_volume": "ledger_progressive",
			"broken":             "ledger_broken",
		},
		func(ctx context.Context, table string) (ledgerStats, error) {
			if table == "ledger_broken" {
				return ledgerStats{}, errors.New("relation does not exist")
			}
			return stats[table], nil
		},
		func() time.Time { return time.Date(2026, time.March, 6, 22, 30, 0, 0, time.UTC) },
		log.New(&buf, "", 0),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	got := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			label := ""
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == "family" {
					label = pair.GetValue()
				}
			}
			got[family.GetName()+"/"+label] = metric.GetGauge().GetValue()
		}
	}
	want := map[string]float64{
		"billing_ledger_rows/flat_period":                12,
		"billing_ledger_rows/progressive_volume":         0,
		"billing_ledger_latest_day_lag_days/flat_period": 2,
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected samples: %v", got)
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("%s: expected %v, got %v (all %v)", key, value, got[key], got)
		}
	}
	if !strings.Contains(buf.String(), "metrics ledger stats failed: family=broken") {
		t.Fatalf("expected failure log, got %q", buf.String())
	}
}
