package postgres

import (
	"context"
	"fmt"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// SiteStore implements storage.SiteStore using PostgreSQL.
type SiteStore struct {
	pool *Pool
}

// NewSiteStore creates a new SiteStore.
func NewSiteStore(pool *Pool) *SiteStore {
	return &SiteStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SiteStore = (*SiteStore)(nil)

// Insert adds a new site. Returns ErrDuplicateKey if site_id exists.
func (s *SiteStore) Insert(ctx context.Context, site *domain.Site) error {
	if site == nil || site.SiteID == "" || site.Timezone == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sites (site_id, timezone, name) VALUES ($1, $2, $3)`,
		site.SiteID, site.Timezone, site.Name,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

// GetByID retrieves a site by its ID. Returns ErrNotFound if not exists.
func (s *SiteStore) GetByID(ctx context.Context, siteID string) (*domain.Site, error) {
	var site domain.Site
	err := s.pool.QueryRow(ctx,
		`SELECT site_id, timezone, name FROM sites WHERE site_id = $1`, siteID,
	).Scan(&site.SiteID, &site.Timezone, &site.Name)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get site by id: %w", err)
	}
	return &site, nil
}

// List retrieves all sites, ordered by site_id.
func (s *SiteStore) List(ctx context.Context) ([]*domain.Site, error) {
	rows, err := s.pool.Query(ctx, `SELECT site_id, timezone, name FROM sites ORDER BY site_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []*domain.Site
	for rows.Next() {
		var site domain.Site
		if err := rows.Scan(&site.SiteID, &site.Timezone, &site.Name); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, &site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}
