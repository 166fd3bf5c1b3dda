package clearsky

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv-fault-lab/internal/domain"
)

func f(v float64) *float64 { return &v }

func day(d int) domain.Date {
	return domain.Date{Year: 2024, Month: time.January, Day: d}
}

type fakeDaily struct {
	rows []*domain.DailyGeneration
	err  error
}

func (f *fakeDaily) GetBySiteRange(_ context.Context, siteID string, from, to domain.Date) ([]*domain.DailyGeneration, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.DailyGeneration
	r := domain.DateRange{From: from, To: to}
	for _, row := range f.rows {
		if row.SiteID == siteID && r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out, nil
}

func TestRatio(t *testing.T) {
	tests := []struct {
		name    string
		row     *domain.DailyGeneration
		want    float64
		defined bool
	}{
		{"normal", &domain.DailyGeneration{Expected: f(45), ClearSky: f(50)}, 0.9, true},
		{"zero model", &domain.DailyGeneration{Expected: f(45), ClearSky: f(0)}, 0, false},
		{"absent model", &domain.DailyGeneration{Expected: f(45)}, 0, false},
		{"absent expected", &domain.DailyGeneration{ClearSky: f(50)}, 0, false},
		{"nil row", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Ratio(tt.row)
			assert.Equal(t, tt.defined, ok)
			if tt.defined {
				assert.InDelta(t, tt.want, got, 1e-12)
			}
		})
	}
}

func TestIdentifyClearSkyDays(t *testing.T) {
	src := &fakeDaily{rows: []*domain.DailyGeneration{
		{SiteID: "s1", Date: day(1), Expected: f(90), ClearSky: f(100)},  // 0.90 -> clear (boundary)
		{SiteID: "s1", Date: day(2), Expected: f(85), ClearSky: f(100)},  // 0.85 -> cloudy
		{SiteID: "s1", Date: day(3), Expected: f(95), ClearSky: f(0)},    // undefined -> excluded
		{SiteID: "s1", Date: day(4), Expected: f(120), ClearSky: f(100)}, // 1.2 -> clear
		{SiteID: "s1", Date: day(5), Expected: f(99), ClearSky: f(100)},  // outside range
		{SiteID: "s2", Date: day(2), Expected: f(99), ClearSky: f(100)},  // other site
	}}
	sel := NewSelector(src, 0.9, false)

	dates, err := sel.IdentifyClearSkyDays(context.Background(), "s1", domain.DateRange{From: day(1), To: day(5)})
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{day(1), day(4)}, dates)
}

func TestIdentifyClearSkyDays_SourceError(t *testing.T) {
	boom := errors.New("boom")
	sel := NewSelector(&fakeDaily{err: boom}, 0.9, false)

	_, err := sel.IdentifyClearSkyDays(context.Background(), "s1", domain.DateRange{From: day(1), To: day(5)})
	assert.ErrorIs(t, err, boom)
}

func TestIdentifyFleet_FillAcrossSites(t *testing.T) {
	src := &fakeDaily{rows: []*domain.DailyGeneration{
		{SiteID: "a", Date: day(1), Expected: f(95), ClearSky: f(100)},
		{SiteID: "b", Date: day(1), Expected: f(95), ClearSky: f(0)}, // undefined
		{SiteID: "a", Date: day(2), Expected: f(50), ClearSky: f(100)},
		{SiteID: "b", Date: day(2), Expected: f(95), ClearSky: f(100)},
	}}
	r := domain.DateRange{From: day(1), To: day(3)}

	filled, err := NewSelector(src, 0.9, true).IdentifyFleet(context.Background(), []string{"a", "b"}, r)
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{day(1)}, filled["a"])
	assert.Equal(t, []domain.Date{day(1), day(2)}, filled["b"], "b on day 1 takes a's ratio")

	strict, err := NewSelector(src, 0.9, false).IdentifyFleet(context.Background(), []string{"a", "b"}, r)
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{day(2)}, strict["b"])
}

func TestBuildTable_FirstColumnNeverFilled(t *testing.T) {
	rows := []*domain.DailyGeneration{
		{SiteID: "a", Date: day(1)},
		{SiteID: "b", Date: day(1), Expected: f(1), ClearSky: f(1)},
	}
	table := BuildTable([]string{"a", "b"}, rows, true)
	assert.Empty(t, table.ClearSkyDates("a", 0.9))
	assert.Equal(t, []domain.Date{day(1)}, table.ClearSkyDates("b", 0.9))
	assert.Nil(t, table.ClearSkyDates("unknown", 0.9))
}
