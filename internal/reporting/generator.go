package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pv-fault-lab/internal/clearsky"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/storage"
)

// Generator produces reports from stored runs and labels.
type Generator struct {
	runStore     storage.RunStore
	monitorStore storage.MonitorStore
	labelStore   storage.LabelStore
	selector     *clearsky.Selector
	threshold    float64
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
// threshold is the clear-sky ratio used to count clear-sky days.
func NewGenerator(
	runStore storage.RunStore,
	monitorStore storage.MonitorStore,
	labelStore storage.LabelStore,
	dailyStore storage.DailyGenerationStore,
	threshold float64,
) *Generator {
	return &Generator{
		runStore:     runStore,
		monitorStore: monitorStore,
		labelStore:   labelStore,
		selector:     clearsky.NewSelector(dailyStore, threshold, false),
		threshold:    threshold,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of a stored run.
// Monitors without stored labels in the run range are omitted.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	monitors, err := g.monitorStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}

	r := domain.DateRange{From: run.RangeFrom, To: run.RangeTo}
	start, end := r.From.In(time.UTC), r.To.In(time.UTC)

	rows := make(map[string][]domain.LabelRow)
	ratios := make(map[string][]clearsky.DailyRatio)
	var summaries []MonitorSummary

	for _, m := range monitors {
		stored, err := g.labelStore.GetByMonitorRange(ctx, m.MonitorID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load labels of %s: %w", m.MonitorID, err)
		}
		if len(stored) == 0 {
			continue
		}
		monitorRows := make([]domain.LabelRow, len(stored))
		for i, row := range stored {
			monitorRows[i] = *row
		}
		rows[m.MonitorID] = monitorRows

		siteRatios, ok := ratios[m.SiteID]
		if !ok {
			siteRatios, err = g.selector.Ratios(ctx, m.SiteID, r)
			if err != nil {
				return nil, err
			}
			ratios[m.SiteID] = siteRatios
		}
		clearDays := len(clearsky.SelectDates(siteRatios, g.threshold))

		summaries = append(summaries, MonitorSummary{
			MonitorID:             m.MonitorID,
			SiteID:                m.SiteID,
			Rows:                  len(monitorRows),
			ClippingRows:          countClipping(monitorRows),
			ClearSkyDays:          clearDays,
			CloudyOrUndefinedDays: len(siteRatios) - clearDays,
			Counts:                CountLabels(monitorRows),
		})
	}

	return assemble(g.now(), *run, summaries, ratios, rows), nil
}

// FromRun builds a report directly from a finished orchestrator run.
func FromRun(res *orchestrator.RunResult, now time.Time) *Report {
	ratios := make(map[string][]clearsky.DailyRatio)
	summaries := make([]MonitorSummary, 0, len(res.Monitors))
	for _, m := range res.Monitors {
		if _, ok := ratios[m.SiteID]; !ok {
			ratios[m.SiteID] = m.Ratios
		}
		summaries = append(summaries, MonitorSummary{
			MonitorID:             m.MonitorID,
			SiteID:                m.SiteID,
			Rows:                  len(m.Rows),
			ClippingRows:          m.ClippingSamples,
			ClearSkyDays:          len(m.ClearSkyDays),
			CloudyOrUndefinedDays: m.CloudyOrUndefinedDays,
			RejectedDays:          m.RejectedDays,
			Counts:                m.LabelCounts(),
		})
	}
	return assemble(now, res.Run, summaries, ratios, res.Rows())
}

func assemble(
	now time.Time,
	run domain.LabelRun,
	summaries []MonitorSummary,
	ratios map[string][]clearsky.DailyRatio,
	rows map[string][]domain.LabelRow,
) *Report {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].MonitorID < summaries[j].MonitorID })

	sites := make([]SiteRatios, 0, len(ratios))
	for id, rs := range ratios {
		sites = append(sites, SiteRatios{SiteID: id, Ratios: rs})
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i].SiteID < sites[j].SiteID })

	return &Report{
		GeneratedAt: now,
		Run:         run,
		Monitors:    summaries,
		LabelTotals: Totals(summaries),
		Sites:       sites,
		Table:       BuildFleetTable(rows),
	}
}

func countClipping(rows []domain.LabelRow) int {
	n := 0
	for _, r := range rows {
		if r.IsClipping {
			n++
		}
	}
	return n
}
