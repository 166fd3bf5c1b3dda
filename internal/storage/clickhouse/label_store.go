package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// LabelStore implements storage.LabelStore using ClickHouse.
type LabelStore struct {
	conn *Conn
}

// NewLabelStore creates a new LabelStore.
func NewLabelStore(conn *Conn) *LabelStore {
	return &LabelStore{conn: conn}
}

// Compile-time interface check.
var _ storage.LabelStore = (*LabelStore)(nil)

// InsertBulk adds multiple rows. Fails entire batch on duplicate (monitor_id, ts).
func (s *LabelStore) InsertBulk(ctx context.Context, rows []*domain.LabelRow) error {
	if len(rows) == 0 {
		return nil
	}

	type key struct {
		monitorID string
		ms        int64
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.MonitorID == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.MonitorID, r.Time.UnixMilli()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, r := range rows {
		exists, err := s.exists(ctx, r.MonitorID, r.Time)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fault_labels (
			monitor_id, ts, labels, primary_label, is_clipping, segment_duration,
			ac_power, ac_voltage, dc_power, theoretical_power
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		var clipping uint8
		if r.IsClipping {
			clipping = 1
		}
		err = batch.Append(
			r.MonitorID, r.Time.UTC(), uint16(r.Labels), string(r.Primary), clipping, uint32(r.SegmentDuration),
			nullable(r.ACPower), nullable(r.ACVoltage), nullable(r.DCPower), nullable(r.TheoreticalPower),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// DeleteByMonitorRange removes rows of a monitor within [start, end).
// Uses a lightweight delete so reruns are visible immediately.
func (s *LabelStore) DeleteByMonitorRange(ctx context.Context, monitorID string, start, end time.Time) error {
	err := s.conn.Exec(ctx, `
		DELETE FROM fault_labels
		WHERE monitor_id = ? AND ts >= ? AND ts < ?
	`, monitorID, start.UTC(), end.UTC())
	if err != nil {
		return fmt.Errorf("delete labels: %w", err)
	}
	return nil
}

// GetByMonitorRange retrieves rows of a monitor within [start, end), ordered by ts ASC.
func (s *LabelStore) GetByMonitorRange(ctx context.Context, monitorID string, start, end time.Time) ([]*domain.LabelRow, error) {
	query := `
		SELECT monitor_id, ts, labels, primary_label, is_clipping, segment_duration,
			ac_power, ac_voltage, dc_power, theoretical_power
		FROM fault_labels
		WHERE monitor_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC
	`

	rows, err := s.conn.Query(ctx, query, monitorID, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	return scanLabelRows(rows)
}

func (s *LabelStore) exists(ctx context.Context, monitorID string, ts time.Time) (bool, error) {
	query := `
		SELECT count(*) FROM fault_labels
		WHERE monitor_id = ? AND ts = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, monitorID, ts.UTC()).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanLabelRows(rows chRows) ([]*domain.LabelRow, error) {
	var out []*domain.LabelRow
	for rows.Next() {
		var (
			r        domain.LabelRow
			labels   uint16
			primary  string
			clipping uint8
			duration uint32
			acP, acV *float64
			dcP, thP *float64
		)
		err := rows.Scan(&r.MonitorID, &r.Time, &labels, &primary, &clipping, &duration, &acP, &acV, &dcP, &thP)
		if err != nil {
			return nil, fmt.Errorf("scan label row: %w", err)
		}
		r.Time = r.Time.UTC()
		r.Labels = domain.LabelSet(labels)
		r.Primary = domain.FaultLabel(primary)
		r.IsClipping = clipping == 1
		r.SegmentDuration = int(duration)
		r.ACPower = orMissing(acP)
		r.ACVoltage = orMissing(acV)
		r.DCPower = orMissing(dcP)
		r.TheoreticalPower = orMissing(thP)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label rows: %w", err)
	}
	return out, nil
}

func orMissing(v *float64) float64 {
	if v == nil {
		return domain.Missing
	}
	return *v
}

// nullable maps a missing measurement to SQL NULL.
func nullable(v float64) *float64 {
	if domain.IsMissing(v) {
		return nil
	}
	return &v
}
