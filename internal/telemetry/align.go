// Package telemetry places sparse telemetry readings onto the fixed sample grid.
package telemetry

import (
	"sort"
	"time"

	"pv-fault-lab/internal/domain"
)

// Direction selects which reading a grid point may take.
type Direction int

const (
	// Backward takes the closest reading at or before the grid point.
	Backward Direction = iota
	// Nearest takes the closest reading on either side, the earlier one on ties.
	Nearest
)

// ParseDirection maps a config value to a Direction. Unknown values map to Backward.
func ParseDirection(s string) Direction {
	if s == "nearest" {
		return Nearest
	}
	return Backward
}

// Grid returns naive local timestamps every step over [r.From, r.To).
func Grid(r domain.DateRange, step time.Duration) []time.Time {
	if step <= 0 {
		return nil
	}
	start := r.From.In(time.UTC)
	end := r.To.In(time.UTC)

	var grid []time.Time
	for t := start; t.Before(end); t = t.Add(step) {
		grid = append(grid, t)
	}
	return grid
}

// ToNaive converts UTC readings into the naive local clock of loc, sorted by time.
func ToNaive(readings []domain.Reading, loc *time.Location) []domain.Reading {
	out := make([]domain.Reading, len(readings))
	for i, r := range readings {
		out[i] = domain.Reading{Time: domain.Naive(r.Time, loc), Value: r.Value}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out
}

// Align returns one value per grid point. Readings must be sorted by time.
// A grid point without a reading within tolerance gets a missing value.
func Align(grid []time.Time, readings []domain.Reading, tolerance time.Duration, dir Direction) []float64 {
	out := make([]float64, len(grid))

	// j is the index of the first reading strictly after the current grid point
	j := 0
	for i, g := range grid {
		for j < len(readings) && !readings[j].Time.After(g) {
			j++
		}

		out[i] = domain.Missing
		best := -1
		var bestGap time.Duration

		if j > 0 {
			best = j - 1
			bestGap = g.Sub(readings[j-1].Time)
		}
		if dir == Nearest && j < len(readings) {
			gap := readings[j].Time.Sub(g)
			if best < 0 || gap < bestGap {
				best = j
				bestGap = gap
			}
		}

		if best >= 0 && bestGap <= tolerance {
			out[i] = readings[best].Value
		}
	}
	return out
}
