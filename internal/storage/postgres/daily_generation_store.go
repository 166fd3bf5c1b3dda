package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// DailyGenerationStore implements storage.DailyGenerationStore using PostgreSQL.
type DailyGenerationStore struct {
	pool *Pool
}

// NewDailyGenerationStore creates a new DailyGenerationStore.
func NewDailyGenerationStore(pool *Pool) *DailyGenerationStore {
	return &DailyGenerationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyGenerationStore = (*DailyGenerationStore)(nil)

// InsertBulk adds multiple rows in one transaction. Fails entire batch on duplicate (site_id, day).
func (s *DailyGenerationStore) InsertBulk(ctx context.Context, rows []*domain.DailyGeneration) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil || r.SiteID == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(
			`INSERT INTO daily_generation (site_id, day, expected_wh, clear_sky_wh) VALUES ($1, $2, $3, $4)`,
			r.SiteID, r.Date.In(time.UTC), r.Expected, r.ClearSky,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert daily generation: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetBySiteRange retrieves rows of a site within [from, to), ordered by day ASC.
func (s *DailyGenerationStore) GetBySiteRange(ctx context.Context, siteID string, from, to domain.Date) ([]*domain.DailyGeneration, error) {
	query := `
		SELECT site_id, day, expected_wh, clear_sky_wh
		FROM daily_generation
		WHERE site_id = $1 AND day >= $2 AND day < $3
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, siteID, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("get daily generation by site range: %w", err)
	}
	defer rows.Close()

	var out []*domain.DailyGeneration
	for rows.Next() {
		var (
			r   domain.DailyGeneration
			day time.Time
		)
		if err := rows.Scan(&r.SiteID, &day, &r.Expected, &r.ClearSky); err != nil {
			return nil, fmt.Errorf("scan daily generation: %w", err)
		}
		r.Date = domain.DateOf(day)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily generation: %w", err)
	}
	return out, nil
}
