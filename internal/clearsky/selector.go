// Package clearsky selects the calendar dates on which a site generated close to its cloudless model.
package clearsky

import (
	"context"
	"fmt"
	"math"
	"sort"

	"pv-fault-lab/internal/domain"
)

// DailySource returns daily generation rows of a site over [from, to).
type DailySource interface {
	GetBySiteRange(ctx context.Context, siteID string, from, to domain.Date) ([]*domain.DailyGeneration, error)
}

// DailyRatio is the cloudiness ratio of one date.
type DailyRatio struct {
	Date    domain.Date
	Ratio   float64 // NaN when undefined
	Defined bool
}

// Selector identifies clear-sky days.
type Selector struct {
	source          DailySource
	threshold       float64
	fillAcrossSites bool
}

// NewSelector creates a Selector. threshold is the minimum expected/clear-sky ratio.
func NewSelector(source DailySource, threshold float64, fillAcrossSites bool) *Selector {
	return &Selector{
		source:          source,
		threshold:       threshold,
		fillAcrossSites: fillAcrossSites,
	}
}

// IdentifyClearSkyDays returns the sorted clear-sky dates of a site within r.
// Dates with an undefined ratio are excluded.
func (s *Selector) IdentifyClearSkyDays(ctx context.Context, siteID string, r domain.DateRange) ([]domain.Date, error) {
	ratios, err := s.Ratios(ctx, siteID, r)
	if err != nil {
		return nil, err
	}
	return SelectDates(ratios, s.threshold), nil
}

// Ratios returns the per-date cloudiness ratios of a site within r.
func (s *Selector) Ratios(ctx context.Context, siteID string, r domain.DateRange) ([]DailyRatio, error) {
	rows, err := s.source.GetBySiteRange(ctx, siteID, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("load daily generation for site %s: %w", siteID, err)
	}
	return Ratios(filterRange(rows, siteID, r)), nil
}

// IdentifyFleet returns clear-sky dates for several sites evaluated together.
// With fillAcrossSites an undefined ratio takes the previous site's ratio of the same date.
func (s *Selector) IdentifyFleet(ctx context.Context, siteIDs []string, r domain.DateRange) (map[string][]domain.Date, error) {
	var rows []*domain.DailyGeneration
	for _, siteID := range siteIDs {
		siteRows, err := s.source.GetBySiteRange(ctx, siteID, r.From, r.To)
		if err != nil {
			return nil, fmt.Errorf("load daily generation for site %s: %w", siteID, err)
		}
		rows = append(rows, filterRange(siteRows, siteID, r)...)
	}

	table := BuildTable(siteIDs, rows, s.fillAcrossSites)
	out := make(map[string][]domain.Date, len(siteIDs))
	for _, siteID := range siteIDs {
		out[siteID] = table.ClearSkyDates(siteID, s.threshold)
	}
	return out, nil
}

// Ratio computes expected / clear-sky for one row.
// The ratio is undefined when either value is absent, the model is zero or the result is not finite.
func Ratio(row *domain.DailyGeneration) (float64, bool) {
	if row == nil || row.Expected == nil || row.ClearSky == nil || *row.ClearSky == 0 {
		return math.NaN(), false
	}
	r := *row.Expected / *row.ClearSky
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN(), false
	}
	return r, true
}

// Ratios computes ratios for rows, sorted by date.
func Ratios(rows []*domain.DailyGeneration) []DailyRatio {
	out := make([]DailyRatio, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		r, ok := Ratio(row)
		out = append(out, DailyRatio{Date: row.Date, Ratio: r, Defined: ok})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// SelectDates returns the dates whose defined ratio meets threshold.
func SelectDates(ratios []DailyRatio, threshold float64) []domain.Date {
	var dates []domain.Date
	for _, r := range ratios {
		if r.Defined && r.Ratio >= threshold {
			dates = append(dates, r.Date)
		}
	}
	return dates
}

func filterRange(rows []*domain.DailyGeneration, siteID string, r domain.DateRange) []*domain.DailyGeneration {
	out := make([]*domain.DailyGeneration, 0, len(rows))
	for _, row := range rows {
		if row != nil && row.SiteID == siteID && r.Contains(row.Date) {
			out = append(out, row)
		}
	}
	return out
}
