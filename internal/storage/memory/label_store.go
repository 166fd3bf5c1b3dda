package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// LabelStore is an in-memory implementation of storage.LabelStore.
type LabelStore struct {
	mu   sync.RWMutex
	data map[string]*domain.LabelRow // keyed by (monitor_id, time)
}

// NewLabelStore creates a new in-memory label store.
func NewLabelStore() *LabelStore {
	return &LabelStore{
		data: make(map[string]*domain.LabelRow),
	}
}

func labelKey(monitorID string, t time.Time) string {
	return fmt.Sprintf("%s|%d", monitorID, t.UnixNano())
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *LabelStore) InsertBulk(_ context.Context, rows []*domain.LabelRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.MonitorID == "" {
			return storage.ErrInvalidInput
		}
		key := labelKey(r.MonitorID, r.Time)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		rowCopy := *r
		s.data[labelKey(r.MonitorID, r.Time)] = &rowCopy
	}
	return nil
}

// DeleteByMonitorRange removes rows of a monitor within [start, end).
func (s *LabelStore) DeleteByMonitorRange(_ context.Context, monitorID string, start, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, r := range s.data {
		if r.MonitorID == monitorID && inRange(r.Time, start, end) {
			delete(s.data, key)
		}
	}
	return nil
}

// GetByMonitorRange retrieves rows of a monitor within [start, end), ordered by time ASC.
func (s *LabelStore) GetByMonitorRange(_ context.Context, monitorID string, start, end time.Time) ([]*domain.LabelRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.LabelRow
	for _, r := range s.data {
		if r.MonitorID == monitorID && inRange(r.Time, start, end) {
			rowCopy := *r
			result = append(result, &rowCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Time.Before(result[j].Time)
	})
	return result, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

var _ storage.LabelStore = (*LabelStore)(nil)
