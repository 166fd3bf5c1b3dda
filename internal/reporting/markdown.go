package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Fault Label Summary\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("| Range | %s to %s (exclusive) |\n", r.Run.RangeFrom, r.Run.RangeTo))
	sb.WriteString(fmt.Sprintf("| Status | %s |\n", r.Run.Status))
	sb.WriteString(fmt.Sprintf("| Monitors | %d requested, %d labelled, %d skipped |\n",
		r.Run.MonitorCount, r.Run.MonitorsLabelled, r.Run.MonitorsSkipped))
	sb.WriteString(fmt.Sprintf("| Rows Written | %d |\n", r.Run.RowsWritten))
	if r.Run.ConfigFingerprint != "" {
		sb.WriteString(fmt.Sprintf("| Config | `%s` |\n", r.Run.ConfigFingerprint))
	}
	sb.WriteString("\n")

	if len(r.Run.Errors) > 0 {
		sb.WriteString("### Errors\n\n")
		for _, e := range r.Run.Errors {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
		sb.WriteString("\n")
	}

	// Data quality
	if len(r.DataQuality.SufficiencyChecks) > 0 || len(r.DataQuality.IntegrityErrors) > 0 {
		sb.WriteString("## Data Quality\n\n")
		if len(r.DataQuality.SufficiencyChecks) > 0 {
			sb.WriteString("| Check | Threshold | Actual | Status |\n")
			sb.WriteString("|-------|-----------|--------|--------|\n")
			for _, check := range r.DataQuality.SufficiencyChecks {
				status := "FAIL"
				if check.Pass {
					status = "PASS"
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
					check.Name, check.Threshold, check.Actual, status))
			}
			sb.WriteString("\n")
		}
		if len(r.DataQuality.IntegrityErrors) > 0 {
			sb.WriteString("### Integrity Errors\n\n")
			for _, e := range r.DataQuality.IntegrityErrors {
				sb.WriteString(fmt.Sprintf("- %s\n", e))
			}
			sb.WriteString("\n")
		}
	}

	// Label totals
	sb.WriteString("## Labels\n\n")
	sb.WriteString("| Label | Family | Samples | Monitors |\n")
	sb.WriteString("|-------|--------|---------|----------|\n")
	for _, t := range r.LabelTotals {
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d |\n", t.Label, t.Family, t.Samples, t.Monitors))
	}
	sb.WriteString("\n")

	// Monitors
	sb.WriteString("## Monitors\n\n")
	if len(r.Monitors) > 0 {
		sb.WriteString("| Monitor | Site | Rows | Clipping | Clear-Sky Days | Cloudy/Undefined Days | Rejected Days | Top Label |\n")
		sb.WriteString("|---------|------|------|----------|----------------|-----------------------|---------------|-----------|\n")
		for _, m := range r.Monitors {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %d | %d | %s |\n",
				m.MonitorID, m.SiteID, m.Rows, m.ClippingRows,
				m.ClearSkyDays, m.CloudyOrUndefinedDays, m.RejectedDays, topLabel(m)))
		}
	} else {
		sb.WriteString("No monitors labelled.\n")
	}
	sb.WriteString("\n")

	// Cloudiness ratios
	sb.WriteString("## Cloudiness Ratios\n\n")
	if len(r.Sites) > 0 {
		sb.WriteString("| Site | Date | Ratio |\n")
		sb.WriteString("|------|------|-------|\n")
		for _, s := range r.Sites {
			for _, d := range s.Ratios {
				ratio := "undefined"
				if d.Defined {
					ratio = fmt.Sprintf("%.4f", d.Ratio)
				}
				sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", s.SiteID, d.Date, ratio))
			}
		}
	} else {
		sb.WriteString("No daily generation data.\n")
	}
	sb.WriteString("\n")

	// Reproducibility
	if rp := r.Reproducibility; rp.GeneratorVersion != "" {
		sb.WriteString("## Reproducibility\n\n")
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Report Timestamp | %s |\n", rp.ReportTimestamp.Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Generator Version | %s |\n", rp.GeneratorVersion))
		sb.WriteString(fmt.Sprintf("| Config Fingerprint | `%s` |\n", rp.ConfigFingerprint))
		sb.WriteString(fmt.Sprintf("| Data Version | `%s` |\n", rp.DataVersion))
		sb.WriteString(fmt.Sprintf("| Commit | `%s` |\n", rp.CommitHash))
		sb.WriteString(fmt.Sprintf("| Replay Command | `%s` |\n", rp.ReplayCommand))
		sb.WriteString("\n")
	}

	return sb.String()
}

// topLabel returns the most frequent label of a monitor, ties broken by column order.
func topLabel(m MonitorSummary) string {
	best, bestN := "-", 0
	for _, t := range Totals([]MonitorSummary{m}) {
		if t.Samples > bestN {
			best, bestN = string(t.Label), t.Samples
		}
	}
	return best
}
