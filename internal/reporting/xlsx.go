package reporting

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"pv-fault-lab/internal/domain"
)

const summarySheet = "Summary"

// BuildXLSX renders the report as a workbook: a Summary sheet plus one sheet per monitor.
func BuildXLSX(r *Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	writeSummarySheet(f, r)

	if r.Table != nil {
		for _, id := range r.Table.Monitors {
			if err := writeMonitorSheet(f, sheetName(id), r.Table.Column(id)); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, r *Report) {
	_ = f.SetCellValue(summarySheet, "A1", "Fault Label Summary")
	_ = f.SetCellValue(summarySheet, "A3", "Run")
	_ = f.SetCellValue(summarySheet, "B3", r.Run.RunID)
	_ = f.SetCellValue(summarySheet, "A4", "Range")
	_ = f.SetCellValue(summarySheet, "B4", fmt.Sprintf("%s..%s", r.Run.RangeFrom, r.Run.RangeTo))
	_ = f.SetCellValue(summarySheet, "A5", "Status")
	_ = f.SetCellValue(summarySheet, "B5", string(r.Run.Status))
	_ = f.SetCellValue(summarySheet, "A6", "Rows")
	_ = f.SetCellValue(summarySheet, "B6", r.Run.RowsWritten)

	_ = f.SetCellValue(summarySheet, "A8", "Label")
	_ = f.SetCellValue(summarySheet, "B8", "Family")
	_ = f.SetCellValue(summarySheet, "C8", "Samples")
	_ = f.SetCellValue(summarySheet, "D8", "Monitors")
	for i, t := range r.LabelTotals {
		row := i + 9
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), string(t.Label))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), string(t.Family))
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), t.Samples)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), t.Monitors)
	}
}

func writeMonitorSheet(f *excelize.File, name string, rows []*domain.LabelRow) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	header := []interface{}{"timestamp"}
	for _, l := range domain.AllLabels {
		header = append(header, string(l))
	}
	header = append(header, "primary_label", "is_clipping", "segment_duration", "ac_power", "ac_voltage", "dc_power", "theoretical_power")
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header of %s: %w", name, err)
	}

	for i, r := range rows {
		values := []interface{}{r.Time.Format(TimeLayout)}
		for _, l := range domain.AllLabels {
			values = append(values, r.Labels.Has(l))
		}
		values = append(values,
			string(r.Primary), r.IsClipping, r.SegmentDuration,
			cellFloat(r.ACPower), cellFloat(r.ACVoltage), cellFloat(r.DCPower), cellFloat(r.TheoreticalPower),
		)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &values); err != nil {
			return fmt.Errorf("write row %d of %s: %w", i, name, err)
		}
	}
	return nil
}

// cellFloat leaves missing measurements blank.
func cellFloat(v float64) interface{} {
	if domain.IsMissing(v) {
		return nil
	}
	return v
}

// sheetName maps a monitor ID to a valid, unique-enough sheet name (max 31 chars, no []:*?/\).
func sheetName(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			r = '_'
		}
		out = append(out, r)
	}
	if len(out) > 31 {
		out = out[:31]
	}
	if string(out) == summarySheet {
		return "m_" + string(out)
	}
	return string(out)
}

// SheetNames returns the sheet names BuildXLSX produces for r, in order.
func SheetNames(r *Report) []string {
	names := []string{summarySheet}
	if r.Table == nil {
		return names
	}
	monitors := append([]string(nil), r.Table.Monitors...)
	sort.Strings(monitors)
	for _, id := range monitors {
		names = append(names, sheetName(id))
	}
	return names
}
