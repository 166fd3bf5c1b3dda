// Package preprocess removes incomplete days and implausible readings, then fills gaps.
package preprocess

import (
	"sort"

	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/domain"
)

// Result is the output of Clean.
type Result struct {
	Samples      []domain.Sample
	RejectedDays []domain.Date // days dropped for missing DC current
	Outliers     int           // samples nulled for implausible DC power
}

// Clean runs day rejection, outlier nulling and forward fill, in that order.
// The input slice is not modified.
func Clean(samples []domain.Sample, pvSize float64, cfg config.Preprocess) Result {
	kept, rejected := RejectDays(samples, cfg.MissingThreshold)
	nulled, outliers := NullOutliers(kept, pvSize, cfg.OutlierCapacityFactor)
	return Result{
		Samples:      ForwardFill(nulled),
		RejectedDays: rejected,
		Outliers:     outliers,
	}
}

// RejectDays drops every sample of a date whose count of missing DC current exceeds threshold.
func RejectDays(samples []domain.Sample, threshold int) ([]domain.Sample, []domain.Date) {
	missing := make(map[domain.Date]int)
	for i := range samples {
		if domain.IsMissing(samples[i].DCCurrent) {
			missing[samples[i].Date()]++
		}
	}

	var rejected []domain.Date
	for d, n := range missing {
		if n > threshold {
			rejected = append(rejected, d)
		}
	}
	sort.Slice(rejected, func(i, j int) bool {
		return rejected[i].Before(rejected[j])
	})
	if len(rejected) == 0 {
		return append([]domain.Sample(nil), samples...), nil
	}

	drop := make(map[domain.Date]bool, len(rejected))
	for _, d := range rejected {
		drop[d] = true
	}

	out := make([]domain.Sample, 0, len(samples))
	for _, s := range samples {
		if !drop[s.Date()] {
			out = append(out, s)
		}
	}
	return out, rejected
}

// NullOutliers sets every measurement of a sample missing when its DC power exceeds factor * pvSize.
func NullOutliers(samples []domain.Sample, pvSize, factor float64) ([]domain.Sample, int) {
	limit := factor * pvSize
	out := make([]domain.Sample, len(samples))
	n := 0
	for i, s := range samples {
		if !domain.IsMissing(s.DCPower) && s.DCPower > limit {
			for _, v := range s.Measurements() {
				*v = domain.Missing
			}
			n++
		}
		out[i] = s
	}
	return out, n
}

// ForwardFill replaces missing values with the most recent prior value of the same field.
// Leading gaps stay missing.
func ForwardFill(samples []domain.Sample) []domain.Sample {
	out := make([]domain.Sample, len(samples))
	copy(out, samples)

	for i := 1; i < len(out); i++ {
		prev := fields(&out[i-1])
		cur := fields(&out[i])
		for k := range cur {
			if domain.IsMissing(*cur[k]) {
				*cur[k] = *prev[k]
			}
		}
	}
	return out
}

func fields(s *domain.Sample) []*float64 {
	return append(s.Measurements(), &s.TheoreticalPower)
}
