package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pv-fault-lab/internal/clearsky"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/storage"
)

// SufficiencyCheck represents one input data criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // data integrity errors
}

func (r *SufficiencyResult) add(check SufficiencyCheck, errs []string) {
	r.Checks = append(r.Checks, check)
	if !check.Pass {
		r.AllPass = false
	}
	r.Errors = append(r.Errors, errs...)
}

// SufficiencyChecker validates that a range has enough input data to label.
type SufficiencyChecker struct {
	monitorStore   storage.MonitorStore
	siteStore      storage.SiteStore
	dailyStore     storage.DailyGenerationStore
	telemetryStore storage.TelemetryStore

	threshold       float64 // clear-sky ratio
	minClearSkyDays int
	minCoverage     float64 // fraction of monitor-days with AC power readings
}

// NewSufficiencyChecker creates a new sufficiency checker.
func NewSufficiencyChecker(
	monitorStore storage.MonitorStore,
	siteStore storage.SiteStore,
	dailyStore storage.DailyGenerationStore,
	telemetryStore storage.TelemetryStore,
	clearSkyThreshold float64,
) *SufficiencyChecker {
	return &SufficiencyChecker{
		monitorStore:    monitorStore,
		siteStore:       siteStore,
		dailyStore:      dailyStore,
		telemetryStore:  telemetryStore,
		threshold:       clearSkyThreshold,
		minClearSkyDays: 1,
		minCoverage:     0.9,
	}
}

// WithMinimums overrides the clear-sky day and telemetry coverage minimums.
func (c *SufficiencyChecker) WithMinimums(minClearSkyDays int, minCoverage float64) *SufficiencyChecker {
	c.minClearSkyDays = minClearSkyDays
	c.minCoverage = minCoverage
	return c
}

// Check performs all checks over r. Empty monitorIDs checks every known monitor.
func (c *SufficiencyChecker) Check(ctx context.Context, r domain.DateRange, monitorIDs []string) (*SufficiencyResult, error) {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 4),
		AllPass: true,
		Errors:  []string{},
	}

	// Check 1: every monitor resolves to a monitor and a site with a valid timezone
	check1, errs1, monitors, err := c.checkMetadata(ctx, monitorIDs)
	if err != nil {
		return nil, err
	}
	result.add(check1, errs1)

	siteIDs := uniqueSites(monitors)

	// Check 2: a daily generation row for every site-day
	check2, errs2, ratios, err := c.checkDailyCoverage(ctx, siteIDs, r)
	if err != nil {
		return nil, err
	}
	result.add(check2, errs2)

	// Check 3: enough clear-sky days per site
	check3, errs3 := c.checkClearSkyDays(siteIDs, ratios)
	result.add(check3, errs3)

	// Check 4: AC power telemetry on most monitor-days
	check4, errs4, err := c.checkTelemetryCoverage(ctx, monitors, r)
	if err != nil {
		return nil, err
	}
	result.add(check4, errs4)

	return result, nil
}

type resolvedMonitor struct {
	monitor *domain.Monitor
	loc     *time.Location
}

func (c *SufficiencyChecker) checkMetadata(ctx context.Context, ids []string) (SufficiencyCheck, []string, []resolvedMonitor, error) {
	if len(ids) == 0 {
		all, err := c.monitorStore.List(ctx)
		if err != nil {
			return SufficiencyCheck{}, nil, nil, fmt.Errorf("failed to list monitors: %w", err)
		}
		for _, m := range all {
			ids = append(ids, m.MonitorID)
		}
	}

	var (
		errs     []string
		resolved []resolvedMonitor
	)
	sites := make(map[string]*time.Location)
	for _, id := range ids {
		m, err := c.monitorStore.GetByID(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Sprintf("monitor %s: no metadata", id))
			continue
		}
		if err != nil {
			return SufficiencyCheck{}, nil, nil, fmt.Errorf("failed to get monitor %s: %w", id, err)
		}

		loc, ok := sites[m.SiteID]
		if !ok {
			site, err := c.siteStore.GetByID(ctx, m.SiteID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				errs = append(errs, fmt.Sprintf("monitor %s: site %s not found", id, m.SiteID))
			case err != nil:
				return SufficiencyCheck{}, nil, nil, fmt.Errorf("failed to get site %s: %w", m.SiteID, err)
			default:
				if loc, err = time.LoadLocation(site.Timezone); err != nil {
					errs = append(errs, fmt.Sprintf("site %s: invalid timezone %q", m.SiteID, site.Timezone))
					loc = nil
				}
			}
			sites[m.SiteID] = loc
		}
		if loc == nil {
			continue
		}
		resolved = append(resolved, resolvedMonitor{monitor: m, loc: loc})
	}

	return SufficiencyCheck{
		Name:      "Monitors with metadata",
		Threshold: "100%",
		Actual:    fmt.Sprintf("%d/%d", len(resolved), len(ids)),
		Pass:      len(resolved) == len(ids) && len(ids) > 0,
	}, errs, resolved, nil
}

func (c *SufficiencyChecker) checkDailyCoverage(ctx context.Context, siteIDs []string, r domain.DateRange) (SufficiencyCheck, []string, map[string][]clearsky.DailyRatio, error) {
	dates := r.Dates()
	ratios := make(map[string][]clearsky.DailyRatio, len(siteIDs))
	var errs []string
	present := 0

	for _, siteID := range siteIDs {
		rows, err := c.dailyStore.GetBySiteRange(ctx, siteID, r.From, r.To)
		if err != nil {
			return SufficiencyCheck{}, nil, nil, fmt.Errorf("failed to get daily generation of %s: %w", siteID, err)
		}
		ratios[siteID] = clearsky.Ratios(rows)

		have := make(map[domain.Date]bool, len(rows))
		for _, row := range rows {
			have[row.Date] = true
		}
		for _, d := range dates {
			if have[d] {
				present++
			} else {
				errs = append(errs, fmt.Sprintf("site %s: no daily generation for %s", siteID, d))
			}
		}
	}

	total := len(siteIDs) * len(dates)
	return SufficiencyCheck{
		Name:      "Daily generation coverage",
		Threshold: "100% of site-days",
		Actual:    fmt.Sprintf("%d/%d", present, total),
		Pass:      present == total,
	}, errs, ratios, nil
}

func (c *SufficiencyChecker) checkClearSkyDays(siteIDs []string, ratios map[string][]clearsky.DailyRatio) (SufficiencyCheck, []string) {
	var errs []string
	fewest, fewestSite := -1, ""
	for _, siteID := range siteIDs {
		n := len(clearsky.SelectDates(ratios[siteID], c.threshold))
		if n < c.minClearSkyDays {
			errs = append(errs, fmt.Sprintf("site %s: %d clear-sky days", siteID, n))
		}
		if fewest < 0 || n < fewest {
			fewest, fewestSite = n, siteID
		}
	}

	actual := "no sites"
	if fewest >= 0 {
		actual = fmt.Sprintf("min %d (%s)", fewest, fewestSite)
	}
	return SufficiencyCheck{
		Name:      "Clear-sky days per site",
		Threshold: fmt.Sprintf(">= %d", c.minClearSkyDays),
		Actual:    actual,
		Pass:      fewest >= c.minClearSkyDays,
	}, errs
}

func (c *SufficiencyChecker) checkTelemetryCoverage(ctx context.Context, monitors []resolvedMonitor, r domain.DateRange) (SufficiencyCheck, []string, error) {
	dates := r.Dates()
	var errs []string
	covered := 0

	for _, rm := range monitors {
		start := r.From.In(rm.loc).UTC()
		end := r.To.In(rm.loc).UTC()
		readings, err := c.telemetryStore.GetReadings(ctx, rm.monitor.MonitorID, domain.MetricACPower, start, end)
		if err != nil {
			return SufficiencyCheck{}, nil, fmt.Errorf("failed to get readings of %s: %w", rm.monitor.MonitorID, err)
		}

		days := make(map[domain.Date]bool)
		for _, rd := range readings {
			days[domain.DateOf(rd.Time.In(rm.loc))] = true
		}
		n := 0
		for _, d := range dates {
			if days[d] {
				n++
			}
		}
		if n == 0 {
			errs = append(errs, fmt.Sprintf("monitor %s: no AC power readings", rm.monitor.MonitorID))
		}
		covered += n
	}

	total := len(monitors) * len(dates)
	coverage := 0.0
	if total > 0 {
		coverage = float64(covered) / float64(total)
	}
	return SufficiencyCheck{
		Name:      "Telemetry coverage",
		Threshold: fmt.Sprintf(">= %.0f%% of monitor-days", c.minCoverage*100),
		Actual:    fmt.Sprintf("%.1f%%", coverage*100),
		Pass:      total > 0 && coverage >= c.minCoverage,
	}, errs, nil
}

func uniqueSites(monitors []resolvedMonitor) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rm := range monitors {
		if !seen[rm.monitor.SiteID] {
			seen[rm.monitor.SiteID] = true
			out = append(out, rm.monitor.SiteID)
		}
	}
	sort.Strings(out)
	return out
}
