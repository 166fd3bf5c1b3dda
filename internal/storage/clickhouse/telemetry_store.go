package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// TelemetryStore implements storage.TelemetryStore using ClickHouse.
type TelemetryStore struct {
	conn *Conn
}

// NewTelemetryStore creates a new TelemetryStore.
func NewTelemetryStore(conn *Conn) *TelemetryStore {
	return &TelemetryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TelemetryStore = (*TelemetryStore)(nil)

// InsertReadings adds readings of one metric. Fails entire batch on duplicate (monitor_id, metric, ts).
func (s *TelemetryStore) InsertReadings(ctx context.Context, monitorID string, metric domain.Metric, readings []domain.Reading) error {
	if monitorID == "" || !metric.IsValid() {
		return storage.ErrInvalidInput
	}
	if len(readings) == 0 {
		return nil
	}

	seen := make(map[int64]struct{}, len(readings))
	minTS, maxTS := readings[0].Time, readings[0].Time
	for _, r := range readings {
		ms := r.Time.UnixMilli()
		if _, exists := seen[ms]; exists {
			return storage.ErrDuplicateKey
		}
		seen[ms] = struct{}{}
		if r.Time.Before(minTS) {
			minTS = r.Time
		}
		if r.Time.After(maxTS) {
			maxTS = r.Time
		}
	}

	// One range probe instead of a count per reading.
	existing, err := s.GetReadings(ctx, monitorID, metric, minTS, maxTS)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	for _, r := range existing {
		if _, dup := seen[r.Time.UnixMilli()]; dup {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO telemetry_readings (monitor_id, metric, ts, value)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range readings {
		if err := batch.Append(monitorID, string(metric), r.Time.UTC(), r.Value); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetReadings retrieves readings within [start, end] (inclusive), ordered by ts ASC.
func (s *TelemetryStore) GetReadings(ctx context.Context, monitorID string, metric domain.Metric, start, end time.Time) ([]domain.Reading, error) {
	query := `
		SELECT ts, value
		FROM telemetry_readings
		WHERE monitor_id = ? AND metric = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, monitorID, string(metric), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	return scanReadings(rows)
}

func scanReadings(rows chRows) ([]domain.Reading, error) {
	var readings []domain.Reading
	for rows.Next() {
		var r domain.Reading
		if err := rows.Scan(&r.Time, &r.Value); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Time = r.Time.UTC()
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate readings: %w", err)
	}
	return readings, nil
}
