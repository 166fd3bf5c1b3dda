package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// MonitorStore implements storage.MonitorStore using PostgreSQL.
type MonitorStore struct {
	pool *Pool
}

// NewMonitorStore creates a new MonitorStore.
func NewMonitorStore(pool *Pool) *MonitorStore {
	return &MonitorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.MonitorStore = (*MonitorStore)(nil)

const monitorColumns = `monitor_id, site_id, pv_size_w, latitude, longitude`

// Insert adds a new monitor. Returns ErrDuplicateKey if monitor_id exists.
func (s *MonitorStore) Insert(ctx context.Context, m *domain.Monitor) error {
	if m == nil || m.MonitorID == "" || m.SiteID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO monitors (` + monitorColumns + `) VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, m.MonitorID, m.SiteID, m.PVSizeW, m.Latitude, m.Longitude)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert monitor: %w", err)
	}
	return nil
}

// GetByID retrieves a monitor by its ID. Returns ErrNotFound if not exists.
func (s *MonitorStore) GetByID(ctx context.Context, monitorID string) (*domain.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE monitor_id = $1`

	m, err := scanMonitor(s.pool.QueryRow(ctx, query, monitorID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get monitor by id: %w", err)
	}
	return m, nil
}

// GetBySite retrieves all monitors of a site, ordered by monitor_id.
func (s *MonitorStore) GetBySite(ctx context.Context, siteID string) ([]*domain.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors WHERE site_id = $1 ORDER BY monitor_id ASC`

	rows, err := s.pool.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("get monitors by site: %w", err)
	}
	defer rows.Close()

	return scanMonitors(rows)
}

// List retrieves all monitors, ordered by monitor_id.
func (s *MonitorStore) List(ctx context.Context) ([]*domain.Monitor, error) {
	query := `SELECT ` + monitorColumns + ` FROM monitors ORDER BY monitor_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	return scanMonitors(rows)
}

func scanMonitor(row pgx.Row) (*domain.Monitor, error) {
	var m domain.Monitor
	if err := row.Scan(&m.MonitorID, &m.SiteID, &m.PVSizeW, &m.Latitude, &m.Longitude); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMonitors(rows pgx.Rows) ([]*domain.Monitor, error) {
	var monitors []*domain.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitors: %w", err)
	}
	return monitors, nil
}
