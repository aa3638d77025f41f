package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	accrualapp "solar-billing/internal/accrual/application"
	accrual "solar-billing/internal/accrual/domain"
	ledgerrepo "solar-billing/internal/accrual/infrastructure/postgres"
	masterdatarepo "solar-billing/internal/masterdata/infrastructure/postgres"
	"solar-billing/internal/observability/metrics"
	tariff "solar-billing/internal/tariff/domain"
	tariffconfig "solar-billing/internal/tariff/infrastructure/config"
	tariffrepo "solar-billing/internal/tariff/infrastructure/postgres"
	telemetryrepo "solar-billing/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type config struct {
	dbURL        string
	timezone     string
	tariffConfig string
	station      string
	tariffType   string
	all          bool
	fromOffset   int
	toOffset     int
	concurrency  int
	deviceType   int
	verbose      bool
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	location, err := time.LoadLocation(cfg.timezone)
	if err != nil {
		fmt.Fprintln(os.Stderr, "timezone:", err)
		os.Exit(2)
	}

	db, err := sql.Open("pgx", cfg.dbURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	logger := log.New(io.Discard, "", 0)
	if cfg.verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	tariffs, err := loadTariffs(cfg, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tariffs:", err)
		os.Exit(2)
	}
	partitioner, err := accrualapp.NewWindowPartitioner(telemetryrepo.NewSampleReader(db))
	if err != nil {
		fmt.Fprintln(os.Stderr, "partitioner:", err)
		os.Exit(2)
	}
	writer, err := accrualapp.NewLedgerWriter(ledgerrepo.NewLedgerRepository(db), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledger writer:", err)
		os.Exit(2)
	}
	service, err := accrualapp.NewAccrualService(partitioner, tariffs, writer,
		accrualapp.WithLocation(location),
		accrualapp.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "accrual service:", err)
		os.Exit(2)
	}
	assignments := masterdatarepo.NewAssignmentRepository(db, masterdatarepo.WithDeviceType(cfg.deviceType))
	orchestrator, err := accrualapp.NewOrchestrator(assignments, service,
		accrualapp.WithConcurrency(cfg.concurrency),
		accrualapp.WithOrchestratorLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orchestrator:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	totals := map[accrualapp.Outcome]int{}
	for offset := cfg.fromOffset; offset <= cfg.toOffset; offset++ {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "interrupted at offset", offset)
			break
		}
		results, err := runOffset(ctx, cfg, service, orchestrator, offset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "offset %d: %v\n", offset, err)
			os.Exit(1)
		}
		for _, result := range results {
			totals[result.Outcome]++
			line := fmt.Sprintf("%s\t%s\t%s\t%s", result.OnDate.Format("2006-01-02"), result.StationCode, result.TariffType, result.Outcome)
			if result.Outcome == accrualapp.OutcomeInserted {
				line += "\t" + result.Revenue.StringFixed(2)
			}
			if result.Error != "" {
				line += "\t" + result.Error
			}
			fmt.Println(line)
		}
	}

	printTotals(totals)
	if totals[accrualapp.OutcomeFailed] > 0 {
		os.Exit(1)
	}
}

func runOffset(ctx context.Context, cfg config, service *accrualapp.AccrualService, orchestrator *accrualapp.Orchestrator, offset int) ([]accrualapp.RunResult, error) {
	if cfg.all {
		metrics.IncAccrualFleetRun("backfill")
		report, err := orchestrator.RunAll(ctx, offset)
		if err != nil {
			return nil, err
		}
		return report.Results, nil
	}
	var (
		result accrualapp.RunResult
		err    error
	)
	if cfg.tariffType != "" {
		result, err = service.RunDailyAccrual(ctx, cfg.station, cfg.tariffType, offset)
	} else {
		result, err = orchestrator.RunStation(ctx, cfg.station, offset)
	}
	if err != nil && result.Outcome == "" {
		return nil, err
	}
	return []accrualapp.RunResult{result}, nil
}

func printTotals(totals map[accrualapp.Outcome]int) {
	outcomes := make([]string, 0, len(totals))
	for outcome := range totals {
		outcomes = append(outcomes, string(outcome))
	}
	sort.Strings(outcomes)
	fmt.Fprint(os.Stderr, "backfill done:")
	for _, outcome := range outcomes {
		fmt.Fprintf(os.Stderr, " %s=%d", outcome, totals[accrualapp.Outcome(outcome)])
	}
	fmt.Fprintln(os.Stderr)
}

func loadTariffs(cfg config, db *sql.DB) (tariff.Provider, error) {
	if cfg.tariffConfig == "" {
		catalog, err := tariffrepo.NewTariffRepository(db).LoadCatalog(context.Background())
		if err != nil {
			return nil, err
		}
		return catalog, nil
	}
	catalog, err := tariffconfig.LoadCatalog(cfg.tariffConfig)
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.StringVar(&cfg.timezone, "tz", getenvDefault("BILLING_TIMEZONE", accrual.DefaultTimezone), "billing time zone")
	flag.StringVar(&cfg.tariffConfig, "tariff-config", getenvDefault("TARIFF_CONFIG", ""), "tariff catalogue YAML (optional, defaults to the tariffs table)")
	flag.StringVar(&cfg.station, "station", "", "station code")
	flag.StringVar(&cfg.tariffType, "tariff", "", "tariff type override for -station (optional)")
	flag.BoolVar(&cfg.all, "all", false, "backfill every assigned station")
	flag.IntVar(&cfg.fromOffset, "from-offset", 0, "first day offset (0 = yesterday)")
	flag.IntVar(&cfg.toOffset, "to-offset", 0, "last day offset, inclusive")
	flag.IntVar(&cfg.concurrency, "concurrency", getenvIntDefault("ACCRUAL_CONCURRENCY", 4), "concurrent stations for -all")
	flag.IntVar(&cfg.deviceType, "device-type", getenvIntDefault("INVERTER_DEVICE_TYPE", masterdatarepo.DefaultInverterDeviceType), "inverter device type id")
	flag.BoolVar(&cfg.verbose, "v", false, "log pipeline steps to stderr")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.all == (cfg.station != "") {
		return cfg, errors.New("exactly one of --station or --all is required")
	}
	if cfg.all && cfg.tariffType != "" {
		return cfg, errors.New("--tariff only applies to --station")
	}
	if cfg.fromOffset < 0 || cfg.toOffset < cfg.fromOffset {
		return cfg, errors.New("offsets must satisfy 0 <= --from-offset <= --to-offset")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
