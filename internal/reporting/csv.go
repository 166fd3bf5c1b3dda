package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"pv-fault-lab/internal/domain"
)

// TimeLayout formats naive local timestamps in exports.
const TimeLayout = "2006-01-02 15:04:05"

// RenderCSV renders the fleet table in long form, one line per (timestamp, monitor) cell.
// Each fault label gets a 0/1 column; missing measurements are empty fields.
func RenderCSV(t *FleetTable) string {
	var sb strings.Builder

	// Header
	sb.WriteString("timestamp,monitor_id")
	for _, l := range domain.AllLabels {
		sb.WriteString(",")
		sb.WriteString(string(l))
	}
	sb.WriteString(",primary_label,is_clipping,segment_duration,ac_power,ac_voltage,dc_power,theoretical_power\n")

	// Rows
	for i, ts := range t.Index {
		for _, r := range t.Cells[i] {
			if r == nil {
				continue
			}
			sb.WriteString(ts.Format(TimeLayout))
			sb.WriteString(",")
			sb.WriteString(csvField(r.MonitorID))
			for _, l := range domain.AllLabels {
				sb.WriteString(",")
				sb.WriteString(boolField(r.Labels.Has(l)))
			}
			sb.WriteString(fmt.Sprintf(",%s,%s,%d,%s,%s,%s,%s\n",
				r.Primary,
				boolField(r.IsClipping),
				r.SegmentDuration,
				floatField(r.ACPower),
				floatField(r.ACVoltage),
				floatField(r.DCPower),
				floatField(r.TheoreticalPower),
			))
		}
	}

	return sb.String()
}

// RenderRatiosCSV renders per-site cloudiness ratios.
func RenderRatiosCSV(sites []SiteRatios) string {
	var sb strings.Builder
	sb.WriteString("site_id,date,ratio\n")
	for _, s := range sites {
		for _, r := range s.Ratios {
			ratio := ""
			if r.Defined {
				ratio = strconv.FormatFloat(r.Ratio, 'f', 4, 64)
			}
			sb.WriteString(fmt.Sprintf("%s,%s,%s\n", csvField(s.SiteID), r.Date, ratio))
		}
	}
	return sb.String()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func floatField(v float64) string {
	if domain.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// csvField quotes s when it carries a separator or quote.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
