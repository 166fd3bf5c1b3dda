package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage/memory"
)

type testStores struct {
	sites     *memory.SiteStore
	monitors  *memory.MonitorStore
	daily     *memory.DailyGenerationStore
	telemetry *memory.TelemetryStore
	labels    *memory.LabelStore
	runs      *memory.RunStore
}

func loadTestFixtures(t *testing.T) *testStores {
	t.Helper()
	s := &testStores{
		sites:     memory.NewSiteStore(),
		monitors:  memory.NewMonitorStore(),
		daily:     memory.NewDailyGenerationStore(),
		telemetry: memory.NewTelemetryStore(),
		labels:    memory.NewLabelStore(),
		runs:      memory.NewRunStore(),
	}
	err := LoadFixtures(context.Background(), FixtureStores{
		Sites:     s.sites,
		Monitors:  s.monitors,
		Daily:     s.daily,
		Telemetry: s.telemetry,
	})
	require.NoError(t, err)
	return s
}

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	s := loadTestFixtures(t)

	sites, err := s.sites.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sites, 2)

	monitors, err := s.monitors.List(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, len(FixtureMonitorIDs()))
	for i, m := range monitors {
		assert.Equal(t, FixtureMonitorIDs()[i], m.MonitorID)
	}

	rows, err := s.daily.GetBySiteRange(ctx, "site-per", FixtureRange.From, FixtureRange.To)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Nil(t, rows[2].ClearSky, "last Perth day has no clear-sky model")

	// 288 readings per day for every metric
	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	start := FixtureRange.From.In(loc).UTC()
	end := FixtureRange.To.In(loc).UTC().Add(-time.Minute)
	for _, metric := range domain.ElectricalMetrics {
		readings, err := s.telemetry.GetReadings(ctx, "syd-clipping", metric, start, end)
		require.NoError(t, err)
		assert.Len(t, readings, 3*288, metric)
	}
}

func TestLoadFixtures_ClippedShape(t *testing.T) {
	ctx := context.Background()
	s := loadTestFixtures(t)

	loc, err := time.LoadLocation("Australia/Sydney")
	require.NoError(t, err)
	start := FixtureRange.From.In(loc).UTC()
	end := FixtureRange.To.In(loc).UTC()

	ac, err := s.telemetry.GetReadings(ctx, "syd-clipping", domain.MetricACPower, start, end)
	require.NoError(t, err)
	dc, err := s.telemetry.GetReadings(ctx, "syd-clipping", domain.MetricDCPower, start, end)
	require.NoError(t, err)
	require.Equal(t, len(ac), len(dc))

	capped := 0
	for i := range ac {
		assert.LessOrEqual(t, ac[i].Value, 4000.0)
		if ac[i].Value == 4000 && dc[i].Value > 1.1*4000 {
			capped++
		}
	}
	assert.Greater(t, capped, 12, "expected at least an hour of clipped output")
}

func TestLoadFixtures_Duplicate(t *testing.T) {
	s := loadTestFixtures(t)
	err := LoadFixtures(context.Background(), FixtureStores{
		Sites:     s.sites,
		Monitors:  s.monitors,
		Daily:     s.daily,
		Telemetry: s.telemetry,
	})
	assert.Error(t, err, "second load must fail on duplicate sites")
}
