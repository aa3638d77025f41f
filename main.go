package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	accrualapp "solar-billing/internal/accrual/application"
	accrual "solar-billing/internal/accrual/domain"
	ledgerrepo "solar-billing/internal/accrual/infrastructure/postgres"
	accrualhttp "solar-billing/internal/accrual/interfaces"
	"solar-billing/internal/audit"
	"solar-billing/internal/auth"
	masterdatarepo "solar-billing/internal/masterdata/infrastructure/postgres"
	"solar-billing/internal/observability/metrics"
	reportapp "solar-billing/internal/reporting/application"
	reporting "solar-billing/internal/reporting/domain"
	reportcache "solar-billing/internal/reporting/infrastructure/memory"
	"solar-billing/internal/reporting/infrastructure/rediscache"
	reporthttp "solar-billing/internal/reporting/interfaces"
	tariff "solar-billing/internal/tariff/domain"
	tariffconfig "solar-billing/internal/tariff/infrastructure/config"
	tariffrepo "solar-billing/internal/tariff/infrastructure/postgres"
	telemetryrepo "solar-billing/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatalf("billing timezone error: tz=%s err=%v", cfg.Timezone, err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	tariffs, err := buildTariffProvider(cfg, db, logger)
	if err != nil {
		logger.Fatalf("tariff provider error: %v", err)
	}
	assignments := masterdatarepo.NewAssignmentRepository(db, masterdatarepo.WithDeviceType(cfg.InverterDeviceType))
	samples := telemetryrepo.NewSampleReader(db)
	ledger := ledgerrepo.NewLedgerRepository(db)

	partitioner, err := accrualapp.NewWindowPartitioner(samples)
	if err != nil {
		logger.Fatalf("window partitioner error: %v", err)
	}
	writer, err := accrualapp.NewLedgerWriter(ledger, logger)
	if err != nil {
		logger.Fatalf("ledger writer error: %v", err)
	}
	accrualService, err := accrualapp.NewAccrualService(partitioner, tariffs, writer,
		accrualapp.WithLocation(location),
		accrualapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("accrual service error: %v", err)
	}
	orchestrator, err := accrualapp.NewOrchestrator(assignments, accrualService,
		accrualapp.WithConcurrency(cfg.AccrualConcurrency),
		accrualapp.WithOrchestratorLogger(logger),
	)
	if err != nil {
		logger.Fatalf("accrual orchestrator error: %v", err)
	}
	accrualHandler, err := accrualhttp.NewAccrualHandler(accrualService, orchestrator, auditRepo, logger)
	if err != nil {
		logger.Fatalf("accrual handler error: %v", err)
	}

	cache, closeCache := buildReportCache(cfg, logger)
	defer closeCache()
	aggregator, err := reportapp.NewAggregator(assignments, tariffs, ledger,
		reportapp.WithCache(cache),
		reportapp.WithStationDirectory(masterdatarepo.NewStationRepository(db)),
		reportapp.WithConsumptionReader(telemetryrepo.NewConsumptionReader(db)),
		reportapp.WithLocation(location),
		reportapp.WithConcurrency(cfg.AccrualConcurrency),
		reportapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("report aggregator error: %v", err)
	}
	reportHandler, err := reporthttp.NewReportHandler(aggregator, auditRepo, logger)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AccrualDailyAt != "" {
		scheduler := accrualapp.NewScheduler(orchestrator, cfg.AccrualDailyAt, location, logger)
		go scheduler.Start(ctx)
		logger.Printf("accrual schedule enabled: daily_at=%s tz=%s", cfg.AccrualDailyAt, location)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/accrual/run", accrualHandler.Run)
	mux.HandleFunc("/api/v1/accrual/run-all", accrualHandler.RunAll)
	mux.Handle("/api/v1/reports/monthly", reportHandler)
	mux.Handle("/api/v1/reports/monthly/", reportHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Printf("http listening on %s", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal(err)
	}
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	Timezone           string
	TariffConfigPath   string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisKeyPrefix     string
	AccrualDailyAt     string
	AccrualConcurrency int
	JWTSecret          string
	InverterDeviceType int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		Timezone:           getenvDefault("BILLING_TIMEZONE", accrual.DefaultTimezone),
		TariffConfigPath:   getenvDefault("TARIFF_CONFIG", ""),
		RedisAddr:          getenvDefault("REDIS_ADDR", ""),
		RedisPassword:      getenvDefault("REDIS_PASSWORD", ""),
		RedisDB:            getenvIntDefault("REDIS_DB", 0),
		RedisKeyPrefix:     getenvDefault("REDIS_KEY_PREFIX", ""),
		AccrualDailyAt:     getenvDefault("ACCRUAL_DAILY_AT", ""),
		AccrualConcurrency: getenvIntDefault("ACCRUAL_CONCURRENCY", 4),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		InverterDeviceType: getenvIntDefault("INVERTER_DEVICE_TYPE", masterdatarepo.DefaultInverterDeviceType),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func buildTariffProvider(cfg config, db *sql.DB, logger *log.Logger) (tariff.Provider, error) {
	if cfg.TariffConfigPath != "" {
		catalog, err := tariffconfig.LoadCatalog(cfg.TariffConfigPath)
		if err != nil {
			return nil, err
		}
		logger.Printf("tariff catalogue loaded: path=%s names=%v", cfg.TariffConfigPath, catalog.Names())
		return catalog, nil
	}
	loadCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	catalog, err := tariffrepo.NewTariffRepository(db).LoadCatalog(loadCtx)
	if err != nil {
		return nil, err
	}
	logger.Printf("tariff catalogue loaded: table=tariffs names=%v", catalog.Names())
	return catalog, nil
}

func buildReportCache(cfg config, logger *log.Logger) (reporting.Cache, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("report cache: in-process")
		return reportcache.NewCache(nil), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Printf("report cache: redis ping error: addr=%s err=%v", cfg.RedisAddr, err)
	}
	cache, err := rediscache.NewCache(client, rediscache.WithPrefix(cfg.RedisKeyPrefix))
	if err != nil {
		logger.Fatalf("report cache error: %v", err)
	}
	logger.Printf("report cache: redis addr=%s db=%d", cfg.RedisAddr, cfg.RedisDB)
	return cache, func() { _ = client.Close() }
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

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
