// Package verification re-labels stored runs and checks that the stored labels are reproduced.
package verification

import (
	"math"
	"sort"
	"time"

	"pv-fault-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and relabelled values.
type FieldDivergence struct {
	Time     time.Time   // naive local timestamp of the row
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // relabelled value
}

// MonitorVerification is the result of verifying one monitor.
type MonitorVerification struct {
	MonitorID      string
	Match          bool // true if all rows match
	StoredRows     int
	RelabelledRows int
	Divergences    []FieldDivergence
}

// VerificationReport contains results for one run.
type VerificationReport struct {
	RunID             string
	ConfigMatch       bool // stored fingerprint equals the current config's
	TotalMonitors     int
	MatchedMonitors   int
	DivergentMonitors int
	Results           []MonitorVerification // ordered by monitor_id
}

// Match reports whether every monitor reproduced its stored labels.
func (r *VerificationReport) Match() bool {
	return r.DivergentMonitors == 0
}

// CompareLabelRows compares two label series of one monitor keyed by timestamp.
// Rows present on one side only are reported with Field "Row".
func CompareLabelRows(stored, relabelled []domain.LabelRow) []FieldDivergence {
	byTime := make(map[time.Time]*domain.LabelRow, len(relabelled))
	for i := range relabelled {
		byTime[relabelled[i].Time] = &relabelled[i]
	}

	var divergences []FieldDivergence
	seen := make(map[time.Time]bool, len(stored))
	for i := range stored {
		s := &stored[i]
		seen[s.Time] = true
		r, ok := byTime[s.Time]
		if !ok {
			divergences = append(divergences, FieldDivergence{Time: s.Time, Field: "Row", Expected: "present", Actual: "missing"})
			continue
		}
		divergences = append(divergences, compareRow(s, r)...)
	}
	for i := range relabelled {
		if !seen[relabelled[i].Time] {
			divergences = append(divergences, FieldDivergence{Time: relabelled[i].Time, Field: "Row", Expected: "missing", Actual: "present"})
		}
	}

	sort.SliceStable(divergences, func(i, j int) bool {
		return divergences[i].Time.Before(divergences[j].Time)
	})
	return divergences
}

func compareRow(stored, relabelled *domain.LabelRow) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Time: stored.Time, Field: field, Expected: expected, Actual: actual})
	}

	if stored.Labels != relabelled.Labels {
		add("Labels", stored.Labels.String(), relabelled.Labels.String())
	}
	if stored.Primary != relabelled.Primary {
		add("Primary", stored.Primary, relabelled.Primary)
	}
	if stored.IsClipping != relabelled.IsClipping {
		add("IsClipping", stored.IsClipping, relabelled.IsClipping)
	}
	if stored.SegmentDuration != relabelled.SegmentDuration {
		add("SegmentDuration", stored.SegmentDuration, relabelled.SegmentDuration)
	}

	floats := []struct {
		field string
		a, b  float64
	}{
		{"ACPower", stored.ACPower, relabelled.ACPower},
		{"ACVoltage", stored.ACVoltage, relabelled.ACVoltage},
		{"DCPower", stored.DCPower, relabelled.DCPower},
		{"TheoreticalPower", stored.TheoreticalPower, relabelled.TheoreticalPower},
	}
	for _, f := range floats {
		if !floatEquals(f.a, f.b) {
			add(f.field, f.a, f.b)
		}
	}
	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
// Two missing values are equal.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= FloatTolerance
}
