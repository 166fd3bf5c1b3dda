// Package segment detects clipping as long runs of near-zero power change around midday.
package segment

import (
	"pv-fault-lab/internal/domain"
)

// Segments run-length encodes flags. A new segment starts at the first index
// whose flag differs from its predecessor; equal neighbours never split.
func Segments(flags []bool) []domain.Segment {
	var segments []domain.Segment
	if len(flags) == 0 {
		return segments
	}

	// in-run state: current value and start of the open run
	current := domain.Segment{Start: 0, Value: flags[0]}
	for i := 1; i < len(flags); i++ {
		if flags[i] == current.Value {
			continue
		}
		// boundary: close the open run and start the next one
		current.End = i - 1
		current.Duration = current.End - current.Start + 1
		segments = append(segments, current)
		current = domain.Segment{Start: i, Value: flags[i]}
	}
	current.End = len(flags) - 1
	current.Duration = current.End - current.Start + 1
	segments = append(segments, current)

	return segments
}

// Durations expands segments into the per-index run length.
func Durations(segments []domain.Segment, n int) []int {
	out := make([]int, n)
	for _, seg := range segments {
		for i := seg.Start; i <= seg.End && i < n; i++ {
			out[i] = seg.Duration
		}
	}
	return out
}
