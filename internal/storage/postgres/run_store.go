package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, range_from, range_to, monitor_count, monitors_labelled, monitors_skipped,
	rows_written, status, config_fingerprint, started_at, finished_at, errors
`

// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, run *domain.LabelRun) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}

	query := `INSERT INTO label_runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := s.pool.Exec(ctx, query,
		run.RunID,
		run.RangeFrom.In(time.UTC),
		run.RangeTo.In(time.UTC),
		run.MonitorCount,
		run.MonitorsLabelled,
		run.MonitorsSkipped,
		run.RowsWritten,
		string(run.Status),
		run.ConfigFingerprint,
		run.StartedAt,
		run.FinishedAt,
		errs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert label run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.LabelRun, error) {
	query := `SELECT ` + runColumns + ` FROM label_runs WHERE run_id = $1`

	run, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get label run by id: %w", err)
	}
	return run, nil
}

// ListRecent retrieves up to limit runs, newest first. A non-positive limit returns all runs.
func (s *RunStore) ListRecent(ctx context.Context, limit int) ([]*domain.LabelRun, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	query := `SELECT ` + runColumns + ` FROM label_runs ORDER BY started_at DESC, run_id ASC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("list label runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.LabelRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan label run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*domain.LabelRun, error) {
	var (
		run      domain.LabelRun
		from, to time.Time
		status   string
	)
	err := row.Scan(
		&run.RunID, &from, &to,
		&run.MonitorCount, &run.MonitorsLabelled, &run.MonitorsSkipped,
		&run.RowsWritten, &status, &run.ConfigFingerprint,
		&run.StartedAt, &run.FinishedAt, &run.Errors,
	)
	if err != nil {
		return nil, err
	}
	run.RangeFrom = domain.DateOf(from)
	run.RangeTo = domain.DateOf(to)
	run.Status = domain.RunStatus(status)
	return &run, nil
}
