package telemetry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"pv-fault-lab/internal/domain"
)

func at(h, m, s int) time.Time {
	return time.Date(2024, 1, 10, h, m, s, 0, time.UTC)
}

func TestGrid(t *testing.T) {
	r := domain.DateRange{
		From: domain.Date{Year: 2024, Month: time.January, Day: 10},
		To:   domain.Date{Year: 2024, Month: time.January, Day: 12},
	}
	grid := Grid(r, 5*time.Minute)

	if len(grid) != 2*288 {
		t.Fatalf("expected %d grid points, got %d", 2*288, len(grid))
	}
	if !grid[0].Equal(at(0, 0, 0)) {
		t.Errorf("first grid point = %v", grid[0])
	}
	last := time.Date(2024, 1, 11, 23, 55, 0, 0, time.UTC)
	if !grid[len(grid)-1].Equal(last) {
		t.Errorf("last grid point = %v, want %v", grid[len(grid)-1], last)
	}
}

func TestAlign_BackwardTolerance(t *testing.T) {
	grid := []time.Time{at(10, 0, 0), at(10, 5, 0), at(10, 10, 0), at(10, 15, 0)}
	readings := []domain.Reading{
		{Time: at(9, 59, 0), Value: 1},   // 60s before 10:00 -> aligned
		{Time: at(10, 3, 59), Value: 2},  // 61s before 10:05 -> missing
		{Time: at(10, 10, 30), Value: 3}, // after 10:10 -> not usable backward
		{Time: at(10, 15, 0), Value: 4},  // exact
	}

	got := Align(grid, readings, time.Minute, Backward)

	if got[0] != 1 {
		t.Errorf("10:00 = %v, want 1", got[0])
	}
	if !math.IsNaN(got[1]) {
		t.Errorf("10:05 = %v, want missing", got[1])
	}
	if !math.IsNaN(got[2]) {
		t.Errorf("10:10 = %v, want missing", got[2])
	}
	if got[3] != 4 {
		t.Errorf("10:15 = %v, want 4", got[3])
	}
}

func TestAlign_Nearest(t *testing.T) {
	grid := []time.Time{at(10, 10, 0), at(10, 20, 0)}
	readings := []domain.Reading{
		{Time: at(10, 9, 20), Value: 1},
		{Time: at(10, 10, 30), Value: 2}, // closer than 10:09:20
		{Time: at(10, 19, 30), Value: 3},
		{Time: at(10, 20, 30), Value: 4}, // tie -> earlier wins
	}

	got := Align(grid, readings, time.Minute, Nearest)
	if got[0] != 2 {
		t.Errorf("10:10 = %v, want 2", got[0])
	}
	if got[1] != 3 {
		t.Errorf("10:20 = %v, want 3", got[1])
	}
}

func TestAlign_NoReadings(t *testing.T) {
	got := Align([]time.Time{at(10, 0, 0)}, nil, time.Minute, Backward)
	if !math.IsNaN(got[0]) {
		t.Errorf("expected missing, got %v", got[0])
	}
}

func TestAssemble_DerivesDCCurrent(t *testing.T) {
	grid := []time.Time{at(12, 0, 0), at(12, 5, 0), at(12, 10, 0)}
	series := map[domain.Metric][]float64{
		domain.MetricDCPower:   {1000, 500, math.NaN()},
		domain.MetricDCVoltage: {400, 0, 400},
	}

	samples := Assemble("m1", grid, series)

	if samples[0].DCCurrent != 2.5 {
		t.Errorf("dc current = %v, want 2.5", samples[0].DCCurrent)
	}
	if samples[1].DCCurrent != 0 {
		t.Errorf("zero voltage dc current = %v, want 0", samples[1].DCCurrent)
	}
	if !math.IsNaN(samples[2].DCCurrent) {
		t.Errorf("missing power dc current = %v, want missing", samples[2].DCCurrent)
	}
	if !math.IsNaN(samples[0].ACPower) {
		t.Errorf("absent metric should be missing, got %v", samples[0].ACPower)
	}
}

type fakeSource struct {
	readings map[domain.Metric][]domain.Reading
	err      error
}

func (f *fakeSource) GetReadings(_ context.Context, _ string, metric domain.Metric, _, _ time.Time) ([]domain.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.readings[metric], nil
}

func TestLoad_ConvertsToLocalClock(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	r := domain.DateRange{
		From: domain.Date{Year: 2024, Month: time.January, Day: 10},
		To:   domain.Date{Year: 2024, Month: time.January, Day: 11},
	}
	// 02:00 UTC == 12:00 local
	src := &fakeSource{readings: map[domain.Metric][]domain.Reading{
		domain.MetricACPower: {{Time: time.Date(2024, 1, 10, 2, 0, 0, 0, time.UTC), Value: 4200}},
	}}

	samples, err := Load(context.Background(), src, "m1", loc, r, Options{Step: 5 * time.Minute, Tolerance: time.Minute})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 288 {
		t.Fatalf("expected 288 samples, got %d", len(samples))
	}
	noon := samples[144]
	if !noon.Time.Equal(at(12, 0, 0)) || noon.ACPower != 4200 {
		t.Errorf("noon sample = %v %v, want 12:00 4200", noon.Time, noon.ACPower)
	}
}

func TestLoad_SourceError(t *testing.T) {
	boom := errors.New("boom")
	r := domain.DateRange{
		From: domain.Date{Year: 2024, Month: time.January, Day: 10},
		To:   domain.Date{Year: 2024, Month: time.January, Day: 11},
	}
	_, err := Load(context.Background(), &fakeSource{err: boom}, "m1", time.UTC, r, Options{Step: 5 * time.Minute})
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped source error, got %v", err)
	}
}
