package reporting

import (
	"sort"
	"time"

	"pv-fault-lab/internal/domain"
)

// FleetTable merges every monitor's label rows onto one master time index.
type FleetTable struct {
	Index    []time.Time // sorted union of all row timestamps
	Monitors []string    // sorted monitor IDs, the table columns
	Cells    [][]*domain.LabelRow
}

// BuildFleetTable aligns rows by timestamp. A monitor without a row at an index time has a nil cell.
// Monitors with no rows still get a column.
func BuildFleetTable(rows map[string][]domain.LabelRow) *FleetTable {
	t := &FleetTable{}
	for id := range rows {
		t.Monitors = append(t.Monitors, id)
	}
	sort.Strings(t.Monitors)

	seen := make(map[time.Time]struct{})
	for _, id := range t.Monitors {
		for _, r := range rows[id] {
			if _, ok := seen[r.Time]; !ok {
				seen[r.Time] = struct{}{}
				t.Index = append(t.Index, r.Time)
			}
		}
	}
	sort.Slice(t.Index, func(i, j int) bool { return t.Index[i].Before(t.Index[j]) })

	pos := make(map[time.Time]int, len(t.Index))
	for i, ts := range t.Index {
		pos[ts] = i
	}

	t.Cells = make([][]*domain.LabelRow, len(t.Index))
	for i := range t.Cells {
		t.Cells[i] = make([]*domain.LabelRow, len(t.Monitors))
	}
	for c, id := range t.Monitors {
		monitorRows := rows[id]
		for i := range monitorRows {
			t.Cells[pos[monitorRows[i].Time]][c] = &monitorRows[i]
		}
	}
	return t
}

// Len returns the number of index rows.
func (t *FleetTable) Len() int {
	return len(t.Index)
}

// Column returns the rows of one monitor in index order, skipping empty cells.
func (t *FleetTable) Column(monitorID string) []*domain.LabelRow {
	c := sort.SearchStrings(t.Monitors, monitorID)
	if c == len(t.Monitors) || t.Monitors[c] != monitorID {
		return nil
	}
	var out []*domain.LabelRow
	for i := range t.Cells {
		if cell := t.Cells[i][c]; cell != nil {
			out = append(out, cell)
		}
	}
	return out
}
