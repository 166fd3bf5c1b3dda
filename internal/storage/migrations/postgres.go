package migrations

import (
	"context"
	"fmt"

	"pv-fault-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the metadata and run schemas.
// pgx runs a whole file in one simple-protocol Exec.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := Postgres()
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}
