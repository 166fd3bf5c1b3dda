package memory

import (
	"context"
	"sort"
	"sync"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// MonitorStore is an in-memory implementation of storage.MonitorStore.
type MonitorStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Monitor // keyed by monitor_id
}

// NewMonitorStore creates a new in-memory monitor store.
func NewMonitorStore() *MonitorStore {
	return &MonitorStore{
		data: make(map[string]*domain.Monitor),
	}
}

// Insert adds a new monitor. Returns ErrDuplicateKey if monitor_id exists.
func (s *MonitorStore) Insert(_ context.Context, m *domain.Monitor) error {
	if m == nil || m.MonitorID == "" || m.SiteID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[m.MonitorID]; exists {
		return storage.ErrDuplicateKey
	}

	monitorCopy := *m
	s.data[m.MonitorID] = &monitorCopy
	return nil
}

// GetByID retrieves a monitor by its ID. Returns ErrNotFound if not exists.
func (s *MonitorStore) GetByID(_ context.Context, monitorID string) (*domain.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.data[monitorID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	monitorCopy := *m
	return &monitorCopy, nil
}

// GetBySite retrieves all monitors of a site, ordered by monitor_id.
func (s *MonitorStore) GetBySite(_ context.Context, siteID string) ([]*domain.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Monitor
	for _, m := range s.data {
		if m.SiteID == siteID {
			monitorCopy := *m
			result = append(result, &monitorCopy)
		}
	}
	sortMonitors(result)
	return result, nil
}

// List retrieves all monitors, ordered by monitor_id.
func (s *MonitorStore) List(_ context.Context) ([]*domain.Monitor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Monitor, 0, len(s.data))
	for _, m := range s.data {
		monitorCopy := *m
		result = append(result, &monitorCopy)
	}
	sortMonitors(result)
	return result, nil
}

func sortMonitors(monitors []*domain.Monitor) {
	sort.Slice(monitors, func(i, j int) bool {
		return monitors[i].MonitorID < monitors[j].MonitorID
	})
}

var _ storage.MonitorStore = (*MonitorStore)(nil)
