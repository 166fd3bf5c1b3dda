package clearsky

import (
	"math"
	"sort"

	"pv-fault-lab/internal/domain"
)

// Table is a date x site matrix of cloudiness ratios.
type Table struct {
	Sites  []string
	Dates  []domain.Date
	Ratios [][]float64 // [date][site], NaN when undefined
}

// BuildTable arranges rows by date and by the given site order.
// With fill, an undefined cell takes the nearest defined cell to its left in the same row.
func BuildTable(sites []string, rows []*domain.DailyGeneration, fill bool) *Table {
	col := make(map[string]int, len(sites))
	for i, s := range sites {
		col[s] = i
	}

	byDate := make(map[domain.Date][]float64)
	for _, row := range rows {
		if row == nil {
			continue
		}
		c, ok := col[row.SiteID]
		if !ok {
			continue
		}
		cells, ok := byDate[row.Date]
		if !ok {
			cells = make([]float64, len(sites))
			for i := range cells {
				cells[i] = math.NaN()
			}
			byDate[row.Date] = cells
		}
		cells[c], _ = Ratio(row)
	}

	t := &Table{Sites: sites}
	for d := range byDate {
		t.Dates = append(t.Dates, d)
	}
	sort.Slice(t.Dates, func(i, j int) bool {
		return t.Dates[i].Before(t.Dates[j])
	})

	t.Ratios = make([][]float64, len(t.Dates))
	for i, d := range t.Dates {
		cells := byDate[d]
		if fill {
			for c := 1; c < len(cells); c++ {
				if math.IsNaN(cells[c]) {
					cells[c] = cells[c-1]
				}
			}
		}
		t.Ratios[i] = cells
	}
	return t
}

// ClearSkyDates returns the dates whose ratio for siteID meets threshold.
func (t *Table) ClearSkyDates(siteID string, threshold float64) []domain.Date {
	c := -1
	for i, s := range t.Sites {
		if s == siteID {
			c = i
			break
		}
	}
	if c < 0 {
		return nil
	}

	var dates []domain.Date
	for i, d := range t.Dates {
		r := t.Ratios[i][c]
		if !math.IsNaN(r) && r >= threshold {
			dates = append(dates, d)
		}
	}
	return dates
}
