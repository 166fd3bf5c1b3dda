package reporting

import (
	"time"

	"pv-fault-lab/internal/clearsky"
	"pv-fault-lab/internal/domain"
)

// Report is the summary of one labelling run.
type Report struct {
	GeneratedAt time.Time
	Run         domain.LabelRun

	// Per-monitor summaries, sorted by monitor_id
	Monitors []MonitorSummary

	// Fleet totals, one per fault label in output column order
	LabelTotals []LabelTotal

	// Cloudiness ratios per site, sorted by site_id
	Sites []SiteRatios

	// Label rows merged onto the master time index
	Table *FleetTable

	DataQuality     DataQualitySection
	Reproducibility ReproducibilityMetadata
}

// DataQualitySection holds the input checks run before labelling.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	IntegrityErrors   []string
	AllChecksPassed   bool
}

// SufficiencyCheckRow is one input check.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// ReproducibilityMetadata identifies the inputs and code that produced a report.
type ReproducibilityMetadata struct {
	ReportTimestamp   time.Time
	GeneratorVersion  string
	ConfigFingerprint string
	DataVersion       string // short hash of the label rows
	CommitHash        string
	ReplayCommand     string
}

// MonitorSummary describes the labelling of one monitor.
type MonitorSummary struct {
	MonitorID             string
	SiteID                string
	Rows                  int
	ClippingRows          int
	ClearSkyDays          int
	CloudyOrUndefinedDays int
	RejectedDays          int // known only for live runs
	Counts                map[domain.FaultLabel]int
}

// LabelTotal is the fleet-wide count of one label.
type LabelTotal struct {
	Label    domain.FaultLabel
	Family   domain.Family
	Samples  int
	Monitors int // monitors with at least one sample
}

// SiteRatios holds the per-date cloudiness ratios of a site.
type SiteRatios struct {
	SiteID string
	Ratios []clearsky.DailyRatio
}

// CountLabels returns the number of rows carrying each label.
func CountLabels(rows []domain.LabelRow) map[domain.FaultLabel]int {
	counts := make(map[domain.FaultLabel]int)
	for _, r := range rows {
		for _, l := range r.Labels.Labels() {
			counts[l]++
		}
	}
	return counts
}

// Totals sums per-monitor counts into one entry per label.
func Totals(monitors []MonitorSummary) []LabelTotal {
	totals := make([]LabelTotal, len(domain.AllLabels))
	for i, l := range domain.AllLabels {
		totals[i] = LabelTotal{Label: l, Family: l.Family()}
		for _, m := range monitors {
			if n := m.Counts[l]; n > 0 {
				totals[i].Samples += n
				totals[i].Monitors++
			}
		}
	}
	return totals
}
