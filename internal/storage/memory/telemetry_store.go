package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

type seriesKey struct {
	monitorID string
	metric    domain.Metric
}

// TelemetryStore is an in-memory implementation of storage.TelemetryStore.
type TelemetryStore struct {
	mu     sync.RWMutex
	series map[seriesKey]map[int64]float64 // unix nanos -> value
}

// NewTelemetryStore creates a new in-memory telemetry store.
func NewTelemetryStore() *TelemetryStore {
	return &TelemetryStore{
		series: make(map[seriesKey]map[int64]float64),
	}
}

// InsertReadings adds readings of one metric. Fails entire batch on duplicate.
func (s *TelemetryStore) InsertReadings(_ context.Context, monitorID string, metric domain.Metric, readings []domain.Reading) error {
	if monitorID == "" || !metric.IsValid() {
		return storage.ErrInvalidInput
	}
	if len(readings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey{monitorID, metric}
	existing := s.series[key]

	batchKeys := make(map[int64]struct{}, len(readings))
	for _, r := range readings {
		ts := r.Time.UnixNano()
		if _, exists := existing[ts]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[ts]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[ts] = struct{}{}
	}

	if existing == nil {
		existing = make(map[int64]float64, len(readings))
		s.series[key] = existing
	}
	for _, r := range readings {
		existing[r.Time.UnixNano()] = r.Value
	}
	return nil
}

// GetReadings retrieves readings within [start, end] (inclusive), ordered by time ASC.
func (s *TelemetryStore) GetReadings(_ context.Context, monitorID string, metric domain.Metric, start, end time.Time) ([]domain.Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := start.UnixNano(), end.UnixNano()
	var result []domain.Reading
	for ts, v := range s.series[seriesKey{monitorID, metric}] {
		if ts >= lo && ts <= hi {
			result = append(result, domain.Reading{Time: time.Unix(0, ts).UTC(), Value: v})
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result, nil
}

var _ storage.TelemetryStore = (*TelemetryStore)(nil)
