// Package main applies the database schemas and loads the synthetic fleet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"pv-fault-lab/internal/pipeline"
	chstore "pv-fault-lab/internal/storage/clickhouse"
	"pv-fault-lab/internal/storage/migrations"
	pgstore "pv-fault-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	migrateOnly := flag.Bool("migrate-only", false, "Apply schemas without loading fixtures")
	flag.Parse()

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.Lshortfile)

	if *postgresDSN == "" || *clickhouseDSN == "" {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required")
	}

	ctx := context.Background()
	if err := run(ctx, logger, *postgresDSN, *clickhouseDSN, *migrateOnly); err != nil {
		logger.Fatalf("Seed failed: %v", err)
	}
	logger.Println("Done")
}

func run(ctx context.Context, logger *log.Logger, postgresDSN, clickhouseDSN string, migrateOnly bool) error {
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	logger.Println("Applying PostgreSQL migrations...")
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return err
	}

	logger.Println("Applying ClickHouse migrations...")
	conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
	if err != nil {
		return err
	}
	defer conn.Close()

	if migrateOnly {
		return nil
	}

	logger.Printf("Loading synthetic fleet (%s..%s)...", pipeline.FixtureRange.From, pipeline.FixtureRange.To)
	err = pipeline.LoadFixtures(ctx, pipeline.FixtureStores{
		Sites:     pgstore.NewSiteStore(pool),
		Monitors:  pgstore.NewMonitorStore(pool),
		Daily:     pgstore.NewDailyGenerationStore(pool),
		Telemetry: chstore.NewTelemetryStore(conn),
	})
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}
	logger.Printf("Loaded monitors: %v", pipeline.FixtureMonitorIDs())
	return nil
}
