package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// DailyGenerationStore is an in-memory implementation of storage.DailyGenerationStore.
type DailyGenerationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DailyGeneration // keyed by (site_id, date)
}

// NewDailyGenerationStore creates a new in-memory daily generation store.
func NewDailyGenerationStore() *DailyGenerationStore {
	return &DailyGenerationStore{
		data: make(map[string]*domain.DailyGeneration),
	}
}

func dailyKey(siteID string, d domain.Date) string {
	return fmt.Sprintf("%s|%s", siteID, d)
}

// InsertBulk adds multiple rows. Fails entire batch on duplicate.
func (s *DailyGenerationStore) InsertBulk(_ context.Context, rows []*domain.DailyGeneration) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.SiteID == "" || r.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := dailyKey(r.SiteID, r.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range rows {
		s.data[dailyKey(r.SiteID, r.Date)] = copyDaily(r)
	}
	return nil
}

// GetBySiteRange retrieves rows of a site within [from, to), ordered by date ASC.
func (s *DailyGenerationStore) GetBySiteRange(_ context.Context, siteID string, from, to domain.Date) ([]*domain.DailyGeneration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := domain.DateRange{From: from, To: to}
	var result []*domain.DailyGeneration
	for _, row := range s.data {
		if row.SiteID == siteID && r.Contains(row.Date) {
			result = append(result, copyDaily(row))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func copyDaily(r *domain.DailyGeneration) *domain.DailyGeneration {
	c := *r
	if r.Expected != nil {
		v := *r.Expected
		c.Expected = &v
	}
	if r.ClearSky != nil {
		v := *r.ClearSky
		c.ClearSky = &v
	}
	return &c
}

var _ storage.DailyGenerationStore = (*DailyGenerationStore)(nil)
