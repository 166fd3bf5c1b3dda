// Package main provides the batch labelling entry point.
// Executes: sufficiency checks → labelling run → LABEL_SUMMARY.md, labels.csv, daily_ratios.csv, labels.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/pipeline"
	"pv-fault-lab/internal/storage"
	chstore "pv-fault-lab/internal/storage/clickhouse"
	"pv-fault-lab/internal/storage/memory"
	pgstore "pv-fault-lab/internal/storage/postgres"
)

func main() {
	// Parse flags
	from := flag.String("from", "", "First date to label (YYYY-MM-DD)")
	to := flag.String("to", "", "Day after the last date to label (YYYY-MM-DD)")
	monitors := flag.String("monitors", "", "Comma-separated monitor IDs (default: all)")
	configPath := flag.String("config", os.Getenv("PVFL_CONFIG"), "YAML config file")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useFixtures := flag.Bool("use-fixtures", false, "Use the in-memory synthetic fleet instead of databases")
	noXLSX := flag.Bool("no-xlsx", false, "Skip the XLSX workbook")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	logger := log.New(os.Stdout, "[labeller] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	r, err := parseRange(*from, *to, *useFixtures)
	if err != nil {
		logger.Fatalf("Range error: %v", err)
	}

	if !*useFixtures && (*postgresDSN == "" || *clickhouseDSN == "") {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn and --clickhouse-dsn are required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling run...", sig)
		cancel()
	}()

	// Create stores based on mode
	var stores *allStores
	if *useFixtures {
		stores, err = createFixtureStores(ctx)
	} else {
		var cleanup func()
		stores, cleanup, err = createDatabaseStores(ctx, *postgresDSN, *clickhouseDSN)
		if err == nil {
			defer cleanup()
		}
	}
	if err != nil {
		logger.Fatalf("Store error: %v", err)
	}

	orch := orchestrator.New(orchestrator.Options{
		MonitorStore:         stores.monitorStore,
		SiteStore:            stores.siteStore,
		DailyGenerationStore: stores.dailyStore,
		TelemetryStore:       stores.telemetryStore,
		LabelStore:           stores.labelStore,
		RunStore:             stores.runStore,
		Config:               cfg,
		Logger:               logger,
		Verbose:              *verbose,
	})

	checker := pipeline.NewSufficiencyChecker(
		stores.monitorStore,
		stores.siteStore,
		stores.dailyStore,
		stores.telemetryStore,
		cfg.ClearSky.Threshold,
	)

	p := pipeline.NewLabelPipeline(orch, *outputDir).WithSufficiencyChecker(checker)
	if *useFixtures {
		p = p.WithDataSource("fixtures")
	} else {
		p = p.WithDBSource(*postgresDSN, *clickhouseDSN)
	}
	if *noXLSX {
		p = p.WithoutXLSX()
	}

	logger.Printf("Labelling %s..%s (workers=%d)", r.From, r.To, cfg.Run.Workers)
	start := time.Now()

	report, err := p.Run(ctx, orchestrator.RunRequest{Range: r, MonitorIDs: splitList(*monitors)})
	if err != nil {
		logger.Fatalf("Pipeline error: %v", err)
	}

	run := report.Run
	fmt.Printf("Run %s %s in %v:\n", run.RunID, run.Status, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  Monitors: %d labelled, %d skipped of %d\n", run.MonitorsLabelled, run.MonitorsSkipped, run.MonitorCount)
	fmt.Printf("  Rows: %d\n", run.RowsWritten)
	if len(run.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(run.Errors))
		for _, e := range run.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
	if !report.DataQuality.AllChecksPassed {
		fmt.Println("  Warning: data quality checks failed, see summary")
	}

	fmt.Println("\nOutputs:")
	fmt.Printf("  - %s/%s\n", *outputDir, pipeline.SummaryFile)
	fmt.Printf("  - %s/%s\n", *outputDir, pipeline.LabelsCSV)
	fmt.Printf("  - %s/%s\n", *outputDir, pipeline.RatiosCSV)
	if !*noXLSX {
		fmt.Printf("  - %s/%s\n", *outputDir, pipeline.LabelsXLSX)
	}

	if run.Status == domain.RunStatusFailed {
		os.Exit(2)
	}
}

// parseRange parses the date flags. Fixture mode defaults to the fixture range.
func parseRange(from, to string, useFixtures bool) (domain.DateRange, error) {
	if from == "" && to == "" && useFixtures {
		return pipeline.FixtureRange, nil
	}
	if from == "" || to == "" {
		return domain.DateRange{}, fmt.Errorf("--from and --to are required")
	}
	f, err := domain.ParseDate(from)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("--from: %w", err)
	}
	t, err := domain.ParseDate(to)
	if err != nil {
		return domain.DateRange{}, fmt.Errorf("--to: %w", err)
	}
	if !f.Before(t) {
		return domain.DateRange{}, fmt.Errorf("--from %s must be before --to %s", f, t)
	}
	return domain.DateRange{From: f, To: t}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

// createFixtureStores creates memory stores loaded with the synthetic fleet.
func createFixtureStores(ctx context.Context) (*allStores, error) {
	monitors := memory.NewMonitorStore()
	sites := memory.NewSiteStore()
	daily := memory.NewDailyGenerationStore()
	telemetry := memory.NewTelemetryStore()

	err := pipeline.LoadFixtures(ctx, pipeline.FixtureStores{
		Sites:     sites,
		Monitors:  monitors,
		Daily:     daily,
		Telemetry: telemetry,
	})
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}

	return &allStores{
		monitorStore:   monitors,
		siteStore:      sites,
		dailyStore:     daily,
		telemetryStore: telemetry,
		labelStore:     memory.NewLabelStore(),
		runStore:       memory.NewRunStore(),
	}, nil
}

// createDatabaseStores connects to PostgreSQL (metadata, runs) and ClickHouse (telemetry, labels).
func createDatabaseStores(ctx context.Context, postgresDSN, clickhouseDSN string) (*allStores, func(), error) {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}

	stores := &allStores{
		monitorStore:   pgstore.NewMonitorStore(pool),
		siteStore:      pgstore.NewSiteStore(pool),
		dailyStore:     pgstore.NewDailyGenerationStore(pool),
		runStore:       pgstore.NewRunStore(pool),
		telemetryStore: chstore.NewTelemetryStore(chConn),
		labelStore:     chstore.NewLabelStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}
