// Package orchestrator provides end-to-end labelling orchestration.
// Per monitor it coordinates: telemetry alignment → clear-sky selection → daylight filter →
// preprocessing → clipping segmentation → fault rule cascade.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pv-fault-lab/internal/clearsky"
	"pv-fault-lab/internal/config"
	"pv-fault-lab/internal/daylight"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/faults"
	"pv-fault-lab/internal/idhash"
	"pv-fault-lab/internal/observability"
	"pv-fault-lab/internal/preprocess"
	"pv-fault-lab/internal/segment"
	"pv-fault-lab/internal/solar"
	"pv-fault-lab/internal/storage"
	"pv-fault-lab/internal/telemetry"
)

var (
	// ErrMissingMetadata is returned when a monitor or its site is unknown. Such monitors are skipped.
	ErrMissingMetadata = errors.New("missing monitor metadata")
	// ErrInvalidRange is returned for an empty or inverted date range.
	ErrInvalidRange = errors.New("invalid date range")
)

// Orchestrator runs the labelling pipeline over monitors.
type Orchestrator struct {
	// Stores
	monitorStore   storage.MonitorStore
	siteStore      storage.SiteStore
	dailyStore     storage.DailyGenerationStore
	telemetryStore storage.TelemetryStore
	labelStore     storage.LabelStore
	runStore       storage.RunStore

	// Stages
	provider   solar.Provider
	selector   *clearsky.Selector
	filter     *daylight.Filter
	classifier *segment.Classifier
	cascade    *faults.Cascade

	cfg     config.Config
	metrics *observability.Metrics
	logger  *log.Logger
	verbose bool
	now     func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	MonitorStore         storage.MonitorStore
	SiteStore            storage.SiteStore
	DailyGenerationStore storage.DailyGenerationStore
	TelemetryStore       storage.TelemetryStore

	// Optional sinks. Nil skips persistence.
	LabelStore storage.LabelStore
	RunStore   storage.RunStore

	// Provider defaults to the NOAA model.
	Provider solar.Provider
	Config   config.Config

	Metrics *observability.Metrics // defaults to observability.DefaultMetrics
	Logger  *log.Logger            // defaults to the standard logger
	Verbose bool
	Now     func() time.Time // injectable clock
}

// New creates a new Orchestrator. opts.Config is expected to be validated.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	provider := opts.Provider
	if provider == nil {
		provider = solar.NewNOAA()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Orchestrator{
		monitorStore:   opts.MonitorStore,
		siteStore:      opts.SiteStore,
		dailyStore:     opts.DailyGenerationStore,
		telemetryStore: opts.TelemetryStore,
		labelStore:     opts.LabelStore,
		runStore:       opts.RunStore,
		provider:       provider,
		selector:       clearsky.NewSelector(opts.DailyGenerationStore, cfg.ClearSky.Threshold, cfg.ClearSky.FillAcrossSites),
		filter:         daylight.NewFilter(provider, cfg.Offset()),
		classifier:     segment.NewClassifier(cfg.Clipping, cfg.Step()),
		cascade:        faults.NewCascade(cfg.Thresholds),
		cfg:            cfg,
		metrics:        metrics,
		logger:         logger,
		verbose:        opts.Verbose,
		now:            now,
	}
}

// RunRequest selects what a run labels.
type RunRequest struct {
	Range      domain.DateRange
	MonitorIDs []string // empty labels every known monitor
	DryRun     bool     // label without writing labels or the run record
}

// MonitorResult is the labelling output of one monitor.
type MonitorResult struct {
	MonitorID string
	SiteID    string
	Rows      []domain.LabelRow

	GridSamples           int // samples on the full grid before filtering
	KeptSamples           int // samples surviving filter and preprocessing
	ClearSkyDays          []domain.Date
	CloudyOrUndefinedDays int
	RejectedDays          int
	Outliers              int
	ClippingSamples       int
	Ratios                []clearsky.DailyRatio
}

// LabelCounts returns the number of samples carrying each label.
func (m *MonitorResult) LabelCounts() map[domain.FaultLabel]int {
	counts := make(map[domain.FaultLabel]int)
	for _, r := range m.Rows {
		for _, l := range r.Labels.Labels() {
			counts[l]++
		}
	}
	return counts
}

// RunResult contains results from orchestrator execution.
type RunResult struct {
	Run      domain.LabelRun
	Monitors []*MonitorResult // labelled monitors, ordered by monitor_id
	Skipped  []string         // monitors without metadata
	Errors   []string
}

// Rows returns label rows keyed by monitor.
func (r *RunResult) Rows() map[string][]domain.LabelRow {
	out := make(map[string][]domain.LabelRow, len(r.Monitors))
	for _, m := range r.Monitors {
		out[m.MonitorID] = m.Rows
	}
	return out
}

// Run labels every requested monitor with bounded parallelism.
// Per-monitor failures are collected in RunResult.Errors; only cancellation fails the run.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if !req.Range.From.Before(req.Range.To) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, req.Range.From, req.Range.To)
	}
	started := o.now()

	// Phase 1: resolve monitors
	o.log("Phase 1: Resolving monitors...")
	ids, err := o.resolveMonitors(ctx, req.MonitorIDs)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (resolve monitors) failed: %w", err)
	}
	o.log("  Found %d monitors", len(ids))

	// Phase 2: fleet-wide clear-sky table, only when ratios are filled across sites
	var fleet map[string][]domain.Date
	if o.cfg.ClearSky.FillAcrossSites {
		o.log("Phase 2: Building fleet cloudiness table...")
		fleet, err = o.fleetClearSky(ctx, req.Range)
		if err != nil {
			return nil, fmt.Errorf("phase 2 (clear-sky table) failed: %w", err)
		}
	}

	// Phase 3: label monitors
	o.log("Phase 3: Labelling monitors (workers=%d)...", o.cfg.Run.Workers)
	result := &RunResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.cfg.Run.Workers, 1))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		id := id
		g.Go(func() error {
			res, err := o.labelMonitor(gctx, id, req.Range, fleet)
			if err == nil && !req.DryRun {
				err = o.persist(gctx, res, req.Range)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Monitors = append(result.Monitors, res)
				o.metrics.RecordMonitor("labelled")
			case errors.Is(err, ErrMissingMetadata):
				result.Skipped = append(result.Skipped, id)
				o.metrics.RecordMonitor("skipped")
				o.log("  skip %s: %v", id, err)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))
				o.metrics.RecordMonitor("failed")
				o.log("  fail %s: %v", id, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("phase 3 (labelling) cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("phase 3 (labelling) cancelled: %w", err)
	}

	sort.Slice(result.Monitors, func(i, j int) bool { return result.Monitors[i].MonitorID < result.Monitors[j].MonitorID })
	sort.Strings(result.Skipped)
	sort.Strings(result.Errors)

	// Phase 4: record run
	result.Run = o.buildRun(req.Range, ids, started, result)
	if req.DryRun {
		return result, nil
	}
	o.metrics.RecordRun(string(result.Run.Status), result.Run.FinishedAt.Sub(started))
	if o.runStore != nil {
		t0 := time.Now()
		err := o.runStore.Insert(ctx, &result.Run)
		o.metrics.RecordDBQuery("postgres", "insert_run", time.Since(t0), err)
		if err != nil {
			return nil, fmt.Errorf("phase 4 (record run) failed: %w", err)
		}
	}

	o.log("Run %s %s: %d labelled, %d skipped, %d errors, %d rows",
		result.Run.RunID, result.Run.Status, result.Run.MonitorsLabelled,
		result.Run.MonitorsSkipped, len(result.Errors), result.Run.RowsWritten)

	return result, nil
}

// LabelMonitor runs the full pipeline for one monitor over r without persisting.
func (o *Orchestrator) LabelMonitor(ctx context.Context, monitorID string, r domain.DateRange) (*MonitorResult, error) {
	if !r.From.Before(r.To) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidRange, r.From, r.To)
	}
	return o.labelMonitor(ctx, monitorID, r, nil)
}

// labelMonitor labels one monitor. fleet, when non-nil, supplies precomputed clear-sky dates per site.
func (o *Orchestrator) labelMonitor(ctx context.Context, monitorID string, r domain.DateRange, fleet map[string][]domain.Date) (*MonitorResult, error) {
	monitor, site, loc, err := o.loadMetadata(ctx, monitorID)
	if err != nil {
		return nil, err
	}
	res := &MonitorResult{MonitorID: monitorID, SiteID: site.SiteID}

	// grid, alignment and DC current
	t0 := time.Now()
	samples, err := telemetry.Load(ctx, o.telemetryStore, monitorID, loc, r, telemetry.Options{
		Step:      o.cfg.Step(),
		Tolerance: o.cfg.Tolerance(),
		Direction: telemetry.ParseDirection(o.cfg.Grid.Direction),
	})
	o.metrics.RecordStage("load", time.Since(t0))
	if err != nil {
		return nil, err
	}
	res.GridSamples = len(samples)

	// theoretical power
	t0 = time.Now()
	o.attachTheoretical(samples, monitor, loc)
	o.metrics.RecordStage("theoretical", time.Since(t0))

	// clear-sky days
	ratios, err := o.selector.Ratios(ctx, site.SiteID, r)
	if err != nil {
		return nil, err
	}
	res.Ratios = ratios
	if fleet != nil {
		res.ClearSkyDays = fleet[site.SiteID]
	} else {
		res.ClearSkyDays = clearsky.SelectDates(ratios, o.cfg.ClearSky.Threshold)
	}
	res.CloudyOrUndefinedDays = len(r.Dates()) - len(res.ClearSkyDays)

	// daylight filter
	t0 = time.Now()
	windows, err := o.filter.Windows(monitor, loc, res.ClearSkyDays)
	if err != nil {
		return nil, err
	}
	kept := daylight.Apply(samples, windows, res.ClearSkyDays)
	o.metrics.RecordStage("daylight", time.Since(t0))

	// preprocessing
	t0 = time.Now()
	cleaned := preprocess.Clean(kept, monitor.PVSizeW, o.cfg.Preprocess)
	o.metrics.RecordStage("preprocess", time.Since(t0))
	res.RejectedDays = len(cleaned.RejectedDays)
	res.Outliers = cleaned.Outliers
	res.KeptSamples = len(cleaned.Samples)
	o.metrics.DaysRejected.Add(float64(res.RejectedDays))
	o.metrics.SamplesKept.Add(float64(res.KeptSamples))

	if len(cleaned.Samples) == 0 {
		o.log("  %s: no samples after filtering", monitorID)
		return res, nil
	}

	// clipping segmentation
	t0 = time.Now()
	states := o.classifier.FindClipping(cleaned.Samples, domain.Metric(o.cfg.Clipping.Metric), monitor.PVSizeW)
	o.metrics.RecordStage("segment", time.Since(t0))

	// rule cascade
	t0 = time.Now()
	labels, err := o.cascade.Evaluate(cleaned.Samples, states)
	o.metrics.RecordStage("cascade", time.Since(t0))
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}

	res.Rows = buildRows(cleaned.Samples, states, labels)
	for _, st := range states {
		if st.IsClipping {
			res.ClippingSamples++
		}
	}

	counts := make(map[string]int)
	for l, n := range res.LabelCounts() {
		counts[string(l)] = n
	}
	o.metrics.RecordLabels(counts)

	o.log("  %s: %d/%d samples kept, %d clear-sky days, %d rejected, %d clipping",
		monitorID, res.KeptSamples, res.GridSamples, len(res.ClearSkyDays), res.RejectedDays, res.ClippingSamples)
	return res, nil
}

// loadMetadata resolves a monitor, its site and the site's timezone.
func (o *Orchestrator) loadMetadata(ctx context.Context, monitorID string) (*domain.Monitor, *domain.Site, *time.Location, error) {
	monitor, err := o.monitorStore.GetByID(ctx, monitorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil, fmt.Errorf("%w: monitor %s: %w", ErrMissingMetadata, monitorID, err)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load monitor %s: %w", monitorID, err)
	}

	site, err := o.siteStore.GetByID(ctx, monitor.SiteID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, nil, fmt.Errorf("%w: site %s of monitor %s: %w", ErrMissingMetadata, monitor.SiteID, monitorID, err)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load site %s: %w", monitor.SiteID, err)
	}

	loc, err := time.LoadLocation(site.Timezone)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load timezone of site %s: %w", site.SiteID, err)
	}
	return monitor, site, loc, nil
}

func (o *Orchestrator) attachTheoretical(samples []domain.Sample, monitor *domain.Monitor, loc *time.Location) {
	times := make([]time.Time, len(samples))
	for i := range samples {
		times[i] = samples[i].Time
	}
	plane := solar.PlaneConfig{
		TiltDeg:    o.cfg.Theoretical.TiltDeg,
		AzimuthDeg: o.cfg.Theoretical.AzimuthDeg,
		LossFactor: o.cfg.Theoretical.LossFactor,
	}
	power := o.provider.TheoreticalPower(times, plane, monitor.Latitude, monitor.Longitude, loc, monitor.PVSizeW)
	for i := range samples {
		if i < len(power) {
			samples[i].TheoreticalPower = power[i]
		}
	}
}

// persist replaces the monitor's stored labels over r.
func (o *Orchestrator) persist(ctx context.Context, res *MonitorResult, r domain.DateRange) error {
	if o.labelStore == nil {
		return nil
	}
	// label times are naive local, so the range bounds are too
	start, end := r.From.In(time.UTC), r.To.In(time.UTC)

	t0 := time.Now()
	err := o.labelStore.DeleteByMonitorRange(ctx, res.MonitorID, start, end)
	o.metrics.RecordDBQuery("clickhouse", "delete_labels", time.Since(t0), err)
	if err != nil {
		return fmt.Errorf("clear labels: %w", err)
	}
	if len(res.Rows) == 0 {
		return nil
	}

	rows := make([]*domain.LabelRow, len(res.Rows))
	for i := range res.Rows {
		rows[i] = &res.Rows[i]
	}
	t0 = time.Now()
	err = o.labelStore.InsertBulk(ctx, rows)
	o.metrics.RecordDBQuery("clickhouse", "insert_labels", time.Since(t0), err)
	if err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	o.metrics.RowsWritten.Add(float64(len(rows)))
	return nil
}

func (o *Orchestrator) resolveMonitors(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		seen := make(map[string]struct{}, len(requested))
		ids := make([]string, 0, len(requested))
		for _, id := range requested {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, nil
	}

	monitors, err := o.monitorStore.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(monitors))
	for i, m := range monitors {
		ids[i] = m.MonitorID
	}
	return ids, nil
}

func (o *Orchestrator) fleetClearSky(ctx context.Context, r domain.DateRange) (map[string][]domain.Date, error) {
	sites, err := o.siteStore.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(sites))
	for i, s := range sites {
		ids[i] = s.SiteID
	}
	return o.selector.IdentifyFleet(ctx, ids, r)
}

func (o *Orchestrator) buildRun(r domain.DateRange, ids []string, started time.Time, res *RunResult) domain.LabelRun {
	rows := 0
	for _, m := range res.Monitors {
		rows += len(m.Rows)
	}

	status := domain.RunStatusCompleted
	switch {
	case len(res.Errors) > 0 && len(res.Monitors) == 0:
		status = domain.RunStatusFailed
	case len(res.Errors) > 0:
		status = domain.RunStatusPartial
	}

	fingerprint := o.cfg.Fingerprint()
	return domain.LabelRun{
		RunID:             idhash.ComputeRunID(r, ids, fingerprint, started),
		RangeFrom:         r.From,
		RangeTo:           r.To,
		MonitorCount:      len(ids),
		MonitorsLabelled:  len(res.Monitors),
		MonitorsSkipped:   len(res.Skipped),
		RowsWritten:       rows,
		Status:            status,
		ConfigFingerprint: fingerprint,
		StartedAt:         started,
		FinishedAt:        o.now(),
		Errors:            append([]string(nil), res.Errors...),
	}
}

func buildRows(samples []domain.Sample, states []domain.ClipState, labels []faults.Result) []domain.LabelRow {
	rows := make([]domain.LabelRow, len(samples))
	for i := range samples {
		s := &samples[i]
		rows[i] = domain.LabelRow{
			MonitorID:        s.MonitorID,
			Time:             s.Time,
			Labels:           labels[i].Labels,
			Primary:          labels[i].Primary,
			IsClipping:       states[i].IsClipping,
			SegmentDuration:  states[i].Duration,
			ACPower:          s.ACPower,
			ACVoltage:        s.ACVoltage,
			DCPower:          s.DCPower,
			TheoreticalPower: s.TheoreticalPower,
		}
	}
	return rows
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf("[orchestrator] "+format, args...)
	}
}
