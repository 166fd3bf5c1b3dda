package segment

import (
	"time"

	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
)

// Classifier flags sustained flat generation.
type Classifier struct {
	cfg  config.Clipping
	step time.Duration
}

// NewClassifier creates a Classifier. step is the sample grid spacing; a
// predecessor further away than step leaves the derivative undefined.
func NewClassifier(cfg config.Clipping, step time.Duration) *Classifier {
	return &Classifier{cfg: cfg, step: step}
}

// Derivatives returns (m[t] - m[t-1]) / capacity for each sample, NaN where undefined.
func (c *Classifier) Derivatives(samples []domain.Sample, metric domain.Metric, capacity float64) []float64 {
	out := make([]float64, len(samples))
	for i := range samples {
		out[i] = domain.Missing
		if i == 0 || capacity == 0 {
			continue
		}
		if c.step > 0 && samples[i].Time.Sub(samples[i-1].Time) != c.step {
			continue
		}
		cur := samples[i].Value(metric)
		prev := samples[i-1].Value(metric)
		if domain.IsMissing(cur) || domain.IsMissing(prev) {
			continue
		}
		out[i] = (cur - prev) / capacity
	}
	return out
}

// PotentialClip reports whether a sample may belong to a clipping run.
// An undefined derivative is never a candidate.
func (c *Classifier) PotentialClip(s *domain.Sample, metric domain.Metric, diff float64) bool {
	if domain.IsMissing(diff) {
		return false
	}
	if diff < c.cfg.DiffLower || diff > c.cfg.DiffUpper {
		return false
	}
	hour := s.Time.Hour()
	if hour < c.cfg.SunStartHour || hour > c.cfg.SunEndHour {
		return false
	}
	return s.Value(metric) > c.cfg.PowerFloorW
}

// FindClipping classifies every sample. The result is index-aligned with samples.
func (c *Classifier) FindClipping(samples []domain.Sample, metric domain.Metric, capacity float64) []domain.ClipState {
	diffs := c.Derivatives(samples, metric, capacity)

	flags := make([]bool, len(samples))
	for i := range samples {
		flags[i] = c.PotentialClip(&samples[i], metric, diffs[i])
	}

	durations := Durations(Segments(flags), len(samples))

	states := make([]domain.ClipState, len(samples))
	for i := range samples {
		states[i] = domain.ClipState{
			Diff:          diffs[i],
			PotentialClip: flags[i],
			Duration:      durations[i],
			IsClipping:    flags[i] && durations[i] >= c.cfg.MinSlots,
		}
	}
	return states
}

// ClippingSegments returns only the segments that qualify as clipping periods.
func (c *Classifier) ClippingSegments(states []domain.ClipState) []domain.Segment {
	flags := make([]bool, len(states))
	for i, s := range states {
		flags[i] = s.PotentialClip
	}

	var out []domain.Segment
	for _, seg := range Segments(flags) {
		if seg.Value && seg.Duration >= c.cfg.MinSlots {
			out = append(out, seg)
		}
	}
	return out
}
