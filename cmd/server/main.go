// Package main provides the labelling service:
// - Scheduler: labels the previous day(s) for every monitor on an interval
// - HTTP API: health, metrics, status, runs, labels
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/observability"
	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/pipeline"
	"pv-fault-lab/internal/reporting"
	"pv-fault-lab/internal/storage"
	chstore "pv-fault-lab/internal/storage/clickhouse"
	"pv-fault-lab/internal/storage/memory"
	pgstore "pv-fault-lab/internal/storage/postgres"
	"pv-fault-lab/internal/verification"
)

// Server holds all components of the service.
type Server struct {
	// Configuration
	cfg          config.Config
	outputDir    string
	interval     time.Duration
	lookbackDays int

	// Stores
	stores *allStores

	// Components
	orch      *orchestrator.Orchestrator
	checker   *pipeline.SufficiencyChecker
	reportGen *reporting.Generator
	verifier  *verification.RunVerifier
	logger    *log.Logger
	now       func() time.Time

	// State
	mu         sync.Mutex
	startedAt  time.Time
	lastRun    time.Time
	lastRunID  string
	lastStatus domain.RunStatus
	running    bool
	runs       int
}

// allStores holds all storage implementations.
type allStores struct {
	monitorStore   storage.MonitorStore
	siteStore      storage.SiteStore
	dailyStore     storage.DailyGenerationStore
	telemetryStore storage.TelemetryStore
	labelStore     storage.LabelStore
	runStore       storage.RunStore
}

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	configPath := flag.String("config", os.Getenv("PVFL_CONFIG"), "YAML config file")
	outputDir := flag.String("output-dir", "output", "Output directory for reports")
	interval := flag.Duration("interval", 24*time.Hour, "Labelling run interval")
	lookbackDays := flag.Int("lookback-days", 1, "Days before today labelled by each scheduled run")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage seeded with the synthetic fleet")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if *lookbackDays < 1 {
		logger.Fatal("--lookback-days must be >= 1")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	server := NewServer(stores, cfg, logger)
	server.outputDir = *outputDir
	server.interval = *interval
	server.lookbackDays = *lookbackDays

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           handlers.RecoveryHandler()(handlers.LoggingHandler(os.Stdout, server.Router())),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Printf("Starting HTTP server on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	// Run the scheduler
	err = server.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	httpServer.Shutdown(shutdownCtx)
	shutdownCancel()

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// NewServer wires the labelling components over stores.
func NewServer(stores *allStores, cfg config.Config, logger *log.Logger) *Server {
	orch := orchestrator.New(orchestrator.Options{
		MonitorStore:         stores.monitorStore,
		SiteStore:            stores.siteStore,
		DailyGenerationStore: stores.dailyStore,
		TelemetryStore:       stores.telemetryStore,
		LabelStore:           stores.labelStore,
		RunStore:             stores.runStore,
		Config:               cfg,
		Logger:               logger,
		Verbose:              true,
	})
	return &Server{
		cfg:          cfg,
		outputDir:    "output",
		interval:     24 * time.Hour,
		lookbackDays: 1,
		stores:       stores,
		orch:         orch,
		checker: pipeline.NewSufficiencyChecker(
			stores.monitorStore, stores.siteStore, stores.dailyStore, stores.telemetryStore, cfg.ClearSky.Threshold,
		),
		reportGen: reporting.NewGenerator(
			stores.runStore, stores.monitorStore, stores.labelStore, stores.dailyStore, cfg.ClearSky.Threshold,
		),
		verifier: verification.NewRunVerifier(verification.RunVerifierOptions{
			RunStore:          stores.runStore,
			MonitorStore:      stores.monitorStore,
			LabelStore:        stores.labelStore,
			Relabeller:        orch,
			ConfigFingerprint: cfg.Fingerprint(),
		}),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		startedAt: time.Now().UTC(),
	}
}

// createStores creates memory or database stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			monitorStore:   memory.NewMonitorStore(),
			siteStore:      memory.NewSiteStore(),
			dailyStore:     memory.NewDailyGenerationStore(),
			telemetryStore: memory.NewTelemetryStore(),
			labelStore:     memory.NewLabelStore(),
			runStore:       memory.NewRunStore(),
		}
		err := pipeline.LoadFixtures(ctx, pipeline.FixtureStores{
			Sites:     stores.siteStore,
			Monitors:  stores.monitorStore,
			Daily:     stores.dailyStore,
			Telemetry: stores.telemetryStore,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("load fixtures: %w", err)
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// ClickHouse
	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &allStores{
		// PostgreSQL stores (metadata + runs)
		monitorStore: pgstore.NewMonitorStore(pool),
		siteStore:    pgstore.NewSiteStore(pool),
		dailyStore:   pgstore.NewDailyGenerationStore(pool),
		runStore:     pgstore.NewRunStore(pool),

		// ClickHouse stores (time series)
		telemetryStore: chstore.NewTelemetryStore(chConn),
		labelStore:     chstore.NewLabelStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

// Run labels on schedule until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Printf("Starting scheduler (interval: %v, lookback: %d days)...", s.interval, s.lookbackDays)

	// Run immediately on start
	s.runScheduled(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	const uptimeTick = 15 * time.Second
	uptime := time.NewTicker(uptimeTick)
	defer uptime.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runScheduled(ctx)
		case <-uptime.C:
			observability.DefaultMetrics.UptimeSeconds.Add(uptimeTick.Seconds())
		}
	}
}

// scheduledRange returns the lookback days ending yesterday.
func (s *Server) scheduledRange() domain.DateRange {
	today := domain.DateOf(s.now())
	return domain.DateRange{From: today.AddDays(-s.lookbackDays), To: today}
}

func (s *Server) runScheduled(ctx context.Context) {
	if _, err := s.runLabelling(ctx, orchestrator.RunRequest{Range: s.scheduledRange()}); err != nil {
		s.logger.Printf("Scheduled run error: %v", err)
	}
}

// errRunInProgress is returned when a run is requested while another is active.
var errRunInProgress = errors.New("labelling run already in progress")

// runLabelling executes one pipeline run. Only one run is active at a time.
func (s *Server) runLabelling(ctx context.Context, req orchestrator.RunRequest) (*reporting.Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, errRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	var report *reporting.Report
	defer func() {
		s.mu.Lock()
		s.running = false
		s.lastRun = s.now()
		s.runs++
		if report != nil {
			s.lastRunID = report.Run.RunID
			s.lastStatus = report.Run.Status
		}
		s.mu.Unlock()
	}()

	s.logger.Printf("Labelling %s..%s", req.Range.From, req.Range.To)
	start := time.Now()

	outputDir := fmt.Sprintf("%s/%s_%s", strings.TrimRight(s.outputDir, "/"), req.Range.From, req.Range.To)
	p := pipeline.NewLabelPipeline(s.orch, outputDir).
		WithSufficiencyChecker(s.checker).
		WithClock(s.now).
		WithDataSource("server")

	report, err := p.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("Run %s %s in %v: %d monitors, %d rows",
		report.Run.RunID, report.Run.Status, time.Since(start), report.Run.MonitorsLabelled, report.Run.RowsWritten)
	return report, nil
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
