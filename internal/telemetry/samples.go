package telemetry

import (
	"context"
	"fmt"
	"time"

	"pv-fault-lab/internal/domain"
)

// ReadingSource returns raw readings of one metric of one monitor over [start, end].
type ReadingSource interface {
	GetReadings(ctx context.Context, monitorID string, metric domain.Metric, start, end time.Time) ([]domain.Reading, error)
}

// Options configures sample assembly.
type Options struct {
	Step      time.Duration
	Tolerance time.Duration
	Direction Direction
}

// Assemble builds dense samples from per-metric aligned values and derives DC current.
// Every series must have len(grid) values; absent metrics stay missing.
func Assemble(monitorID string, grid []time.Time, series map[domain.Metric][]float64) []domain.Sample {
	samples := make([]domain.Sample, len(grid))
	for i, t := range grid {
		s := domain.NewSample(monitorID, t)
		for metric, values := range series {
			if i < len(values) {
				s.Set(metric, values[i])
			}
		}
		s.DCCurrent = domain.DeriveDCCurrent(s.DCPower, s.DCVoltage)
		samples[i] = s
	}
	return samples
}

// Load reads every electrical metric of a monitor and aligns it onto the grid of r.
func Load(ctx context.Context, src ReadingSource, monitorID string, loc *time.Location, r domain.DateRange, opts Options) ([]domain.Sample, error) {
	grid := Grid(r, opts.Step)
	if len(grid) == 0 {
		return nil, nil
	}

	// query window in real instants, widened by the tolerance on both sides
	start := r.From.In(loc).Add(-opts.Tolerance).UTC()
	end := r.To.In(loc).Add(opts.Tolerance).UTC()

	series := make(map[domain.Metric][]float64, len(domain.ElectricalMetrics))
	for _, metric := range domain.ElectricalMetrics {
		readings, err := src.GetReadings(ctx, monitorID, metric, start, end)
		if err != nil {
			return nil, fmt.Errorf("load %s readings: %w", metric, err)
		}
		series[metric] = Align(grid, ToNaive(readings, loc), opts.Tolerance, opts.Direction)
	}

	return Assemble(monitorID, grid, series), nil
}
