package memory

import (
	"context"
	"sort"
	"sync"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// SiteStore is an in-memory implementation of storage.SiteStore.
type SiteStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Site // keyed by site_id
}

// NewSiteStore creates a new in-memory site store.
func NewSiteStore() *SiteStore {
	return &SiteStore{
		data: make(map[string]*domain.Site),
	}
}

// Insert adds a new site. Returns ErrDuplicateKey if site_id exists.
func (s *SiteStore) Insert(_ context.Context, site *domain.Site) error {
	if site == nil || site.SiteID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[site.SiteID]; exists {
		return storage.ErrDuplicateKey
	}

	siteCopy := *site
	s.data[site.SiteID] = &siteCopy
	return nil
}

// GetByID retrieves a site by its ID. Returns ErrNotFound if not exists.
func (s *SiteStore) GetByID(_ context.Context, siteID string) (*domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	site, ok := s.data[siteID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	siteCopy := *site
	return &siteCopy, nil
}

// List retrieves all sites, ordered by site_id.
func (s *SiteStore) List(_ context.Context) ([]*domain.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Site, 0, len(s.data))
	for _, site := range s.data {
		siteCopy := *site
		result = append(result, &siteCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SiteID < result[j].SiteID
	})
	return result, nil
}

var _ storage.SiteStore = (*SiteStore)(nil)
