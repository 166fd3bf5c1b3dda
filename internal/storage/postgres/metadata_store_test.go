package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

func seedSite(t *testing.T, ctx context.Context, pool *Pool, siteID string) {
	t.Helper()
	require.NoError(t, NewSiteStore(pool).Insert(ctx, &domain.Site{SiteID: siteID, Timezone: "Australia/Sydney", Name: siteID}))
}

func TestSiteStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSiteStore(pool)
	ctx := context.Background()

	site := &domain.Site{SiteID: "s1", Timezone: "Australia/Sydney", Name: "Depot"}
	require.NoError(t, store.Insert(ctx, site))

	got, err := store.GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, *site, *got)

	assert.ErrorIs(t, store.Insert(ctx, site), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMonitorStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewMonitorStore(pool)
	ctx := context.Background()
	seedSite(t, ctx, pool, "s1")
	seedSite(t, ctx, pool, "s2")

	monitors := []*domain.Monitor{
		{MonitorID: "m2", SiteID: "s1", PVSizeW: 6600, Latitude: -33.87, Longitude: 151.21},
		{MonitorID: "m1", SiteID: "s1", PVSizeW: 10000, Latitude: -33.87, Longitude: 151.21},
		{MonitorID: "m3", SiteID: "s2", PVSizeW: 5000, Latitude: -37.81, Longitude: 144.96},
	}
	for _, m := range monitors {
		require.NoError(t, store.Insert(ctx, m))
	}

	got, err := store.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, *monitors[1], *got)

	bySite, err := store.GetBySite(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, bySite, 2)
	assert.Equal(t, "m1", bySite[0].MonitorID)
	assert.Equal(t, "m2", bySite[1].MonitorID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.ErrorIs(t, store.Insert(ctx, monitors[0]), storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, "m9")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDailyGenerationStore_InsertAndRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDailyGenerationStore(pool)
	ctx := context.Background()

	d := func(day int) domain.Date { return domain.Date{Year: 2024, Month: time.January, Day: day} }

	rows := []*domain.DailyGeneration{
		{SiteID: "s1", Date: d(2), Expected: ptr(38000.0), ClearSky: ptr(45000.0)},
		{SiteID: "s1", Date: d(1), Expected: ptr(20000.0), ClearSky: ptr(44000.0)},
		{SiteID: "s1", Date: d(3), Expected: ptr(41000.0)},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetBySiteRange(ctx, "s1", d(1), d(3))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, d(1), got[0].Date)
	assert.Equal(t, d(2), got[1].Date)
	assert.Equal(t, 38000.0, *got[1].Expected)

	last, err := store.GetBySiteRange(ctx, "s1", d(3), d(4))
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Nil(t, last[0].ClearSky)

	// a duplicate anywhere in the batch rolls back the whole batch
	err = store.InsertBulk(ctx, []*domain.DailyGeneration{
		{SiteID: "s1", Date: d(4)},
		{SiteID: "s1", Date: d(1)},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	none, err := store.GetBySiteRange(ctx, "s1", d(4), d(5))
	require.NoError(t, err)
	assert.Empty(t, none)
}
