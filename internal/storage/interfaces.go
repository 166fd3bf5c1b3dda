package storage

import (
	"context"
	"time"

	"pv-fault-lab/internal/domain"
)

// MonitorStore provides access to monitors storage.
type MonitorStore interface {
	// Insert adds a new monitor. Returns ErrDuplicateKey if monitor_id exists.
	Insert(ctx context.Context, m *domain.Monitor) error

	// GetByID retrieves a monitor by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, monitorID string) (*domain.Monitor, error)

	// GetBySite retrieves all monitors of a site, ordered by monitor_id.
	GetBySite(ctx context.Context, siteID string) ([]*domain.Monitor, error)

	// List retrieves all monitors, ordered by monitor_id.
	List(ctx context.Context) ([]*domain.Monitor, error)
}

// SiteStore provides access to sites storage.
type SiteStore interface {
	// Insert adds a new site. Returns ErrDuplicateKey if site_id exists.
	Insert(ctx context.Context, s *domain.Site) error

	// GetByID retrieves a site by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, siteID string) (*domain.Site, error)

	// List retrieves all sites, ordered by site_id.
	List(ctx context.Context) ([]*domain.Site, error)
}

// DailyGenerationStore provides access to daily_generation storage.
type DailyGenerationStore interface {
	// InsertBulk adds multiple rows atomically. Fails entire batch on duplicate (site_id, date).
	InsertBulk(ctx context.Context, rows []*domain.DailyGeneration) error

	// GetBySiteRange retrieves rows of a site within [from, to), ordered by date ASC.
	GetBySiteRange(ctx context.Context, siteID string, from, to domain.Date) ([]*domain.DailyGeneration, error)
}

// TelemetryStore provides access to telemetry_readings storage.
type TelemetryStore interface {
	// InsertReadings adds readings of one metric. Fails entire batch on duplicate (monitor_id, metric, time).
	InsertReadings(ctx context.Context, monitorID string, metric domain.Metric, readings []domain.Reading) error

	// GetReadings retrieves readings within [start, end] (inclusive), ordered by time ASC.
	GetReadings(ctx context.Context, monitorID string, metric domain.Metric, start, end time.Time) ([]domain.Reading, error)
}

// LabelStore provides access to fault_labels storage.
type LabelStore interface {
	// InsertBulk adds multiple rows. Fails entire batch on duplicate (monitor_id, time).
	InsertBulk(ctx context.Context, rows []*domain.LabelRow) error

	// DeleteByMonitorRange removes rows of a monitor within [start, end).
	DeleteByMonitorRange(ctx context.Context, monitorID string, start, end time.Time) error

	// GetByMonitorRange retrieves rows of a monitor within [start, end), ordered by time ASC.
	GetByMonitorRange(ctx context.Context, monitorID string, start, end time.Time) ([]*domain.LabelRow, error)
}

// RunStore provides access to label_runs storage.
type RunStore interface {
	// Insert adds a finished run. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, run *domain.LabelRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.LabelRun, error)

	// ListRecent retrieves up to limit runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.LabelRun, error)
}
