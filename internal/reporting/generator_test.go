package reporting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pv-fault-lab/internal/clearsky"
	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/storage/memory"
)

func jan(d int) domain.Date {
	return domain.Date{Year: 2024, Month: time.January, Day: d}
}

func f64(v float64) *float64 { return &v }

func row(monitorID string, day, hour, minute int, labels ...domain.FaultLabel) *domain.LabelRow {
	r := &domain.LabelRow{
		MonitorID:        monitorID,
		Time:             time.Date(2024, time.January, day, hour, minute, 0, 0, time.UTC),
		ACPower:          5000,
		ACVoltage:        240,
		DCPower:          5200,
		TheoreticalPower: domain.Missing,
	}
	for _, l := range labels {
		r.Labels = r.Labels.Add(l)
		if r.Primary == domain.LabelNone {
			r.Primary = l
		}
		if l == domain.LabelInverterClipping {
			r.IsClipping = true
			r.SegmentDuration = 3
		}
	}
	return r
}

type testStores struct {
	runs     *memory.RunStore
	monitors *memory.MonitorStore
	labels   *memory.LabelStore
	daily    *memory.DailyGenerationStore
}

func setupTestData(t *testing.T) testStores {
	ctx := context.Background()
	s := testStores{
		runs:     memory.NewRunStore(),
		monitors: memory.NewMonitorStore(),
		labels:   memory.NewLabelStore(),
		daily:    memory.NewDailyGenerationStore(),
	}

	monitors := []*domain.Monitor{
		{MonitorID: "m-b", SiteID: "site-1", PVSizeW: 10000},
		{MonitorID: "m-a", SiteID: "site-1", PVSizeW: 10000},
		{MonitorID: "m-idle", SiteID: "site-2", PVSizeW: 5000},
	}
	for _, m := range monitors {
		if err := s.monitors.Insert(ctx, m); err != nil {
			t.Fatalf("Insert monitor failed: %v", err)
		}
	}

	daily := []*domain.DailyGeneration{
		{SiteID: "site-1", Date: jan(1), Expected: f64(9000), ClearSky: f64(10000)},
		{SiteID: "site-1", Date: jan(2), Expected: f64(4000), ClearSky: f64(10000)},
		{SiteID: "site-1", Date: jan(3), Expected: f64(9000)},
	}
	if err := s.daily.InsertBulk(ctx, daily); err != nil {
		t.Fatalf("InsertBulk daily failed: %v", err)
	}

	rows := []*domain.LabelRow{
		row("m-a", 1, 10, 0),
		row("m-a", 1, 10, 5, domain.LabelInverterClipping),
		row("m-a", 1, 10, 10, domain.LabelInverterClipping),
		row("m-b", 1, 10, 5, domain.LabelDCZeroGeneration, domain.LabelBlackout),
		row("m-b", 1, 10, 15),
	}
	if err := s.labels.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk labels failed: %v", err)
	}

	run := &domain.LabelRun{
		RunID:            "run-1",
		RangeFrom:        jan(1),
		RangeTo:          jan(4),
		MonitorCount:     3,
		MonitorsLabelled: 2,
		MonitorsSkipped:  1,
		RowsWritten:      5,
		Status:           domain.RunStatusCompleted,
		StartedAt:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt:       time.Date(2024, 2, 1, 0, 1, 0, 0, time.UTC),
	}
	if err := s.runs.Insert(ctx, run); err != nil {
		t.Fatalf("Insert run failed: %v", err)
	}
	return s
}

func newTestGenerator(s testStores) *Generator {
	fixed := time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)
	return NewGenerator(s.runs, s.monitors, s.labels, s.daily, 0.8).
		WithClock(func() time.Time { return fixed })
}

func TestGenerator_Generate(t *testing.T) {
	s := setupTestData(t)
	g := newTestGenerator(s)

	report, err := g.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !report.GeneratedAt.Equal(time.Date(2024, 2, 2, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("GeneratedAt = %v, want fixed clock", report.GeneratedAt)
	}
	if report.Run.RunID != "run-1" {
		t.Errorf("Run.RunID = %q, want run-1", report.Run.RunID)
	}

	// m-idle has no labels and is omitted
	if len(report.Monitors) != 2 {
		t.Fatalf("expected 2 monitors, got %d", len(report.Monitors))
	}
	a, b := report.Monitors[0], report.Monitors[1]
	if a.MonitorID != "m-a" || b.MonitorID != "m-b" {
		t.Fatalf("monitors not sorted: %s, %s", a.MonitorID, b.MonitorID)
	}
	if a.Rows != 3 || a.ClippingRows != 2 {
		t.Errorf("m-a rows=%d clipping=%d, want 3 and 2", a.Rows, a.ClippingRows)
	}
	if a.Counts[domain.LabelInverterClipping] != 2 {
		t.Errorf("m-a clipping count = %d, want 2", a.Counts[domain.LabelInverterClipping])
	}

	// Jan 1 is clear (0.9); Jan 2 cloudy (0.4); Jan 3 undefined
	if a.ClearSkyDays != 1 || a.CloudyOrUndefinedDays != 2 {
		t.Errorf("m-a clear=%d cloudy=%d, want 1 and 2", a.ClearSkyDays, a.CloudyOrUndefinedDays)
	}

	if len(report.Sites) != 1 || report.Sites[0].SiteID != "site-1" {
		t.Fatalf("expected ratios of site-1 only, got %+v", report.Sites)
	}
	if len(report.Sites[0].Ratios) != 3 {
		t.Errorf("expected 3 ratios, got %d", len(report.Sites[0].Ratios))
	}

	if report.Table.Len() != 4 {
		t.Errorf("fleet table has %d index rows, want 4", report.Table.Len())
	}
}

func TestGenerator_LabelTotals(t *testing.T) {
	s := setupTestData(t)
	report, err := newTestGenerator(s).Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(report.LabelTotals) != len(domain.AllLabels) {
		t.Fatalf("expected %d totals, got %d", len(domain.AllLabels), len(report.LabelTotals))
	}
	byLabel := make(map[domain.FaultLabel]LabelTotal)
	for _, lt := range report.LabelTotals {
		byLabel[lt.Label] = lt
	}
	if got := byLabel[domain.LabelInverterClipping]; got.Samples != 2 || got.Monitors != 1 {
		t.Errorf("inverter_clipping total = %+v", got)
	}
	if got := byLabel[domain.LabelBlackout]; got.Samples != 1 || got.Family != domain.FamilyZeroGeneration {
		t.Errorf("blackout total = %+v", got)
	}
	if got := byLabel[domain.LabelGridOvervoltage]; got.Samples != 0 || got.Monitors != 0 {
		t.Errorf("grid_overvoltage total = %+v", got)
	}
}

func TestGenerator_UnknownRun(t *testing.T) {
	s := setupTestData(t)
	if _, err := newTestGenerator(s).Generate(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestGenerator_Deterministic(t *testing.T) {
	s := setupTestData(t)
	g := newTestGenerator(s)

	r1, err := g.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	r2, err := g.Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if RenderMarkdown(r1) != RenderMarkdown(r2) {
		t.Error("markdown output is not deterministic")
	}
	if RenderCSV(r1.Table) != RenderCSV(r2.Table) {
		t.Error("csv output is not deterministic")
	}
}

func TestRenderMarkdown(t *testing.T) {
	s := setupTestData(t)
	report, err := newTestGenerator(s).Generate(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	md := RenderMarkdown(report)
	for _, want := range []string{
		"# Fault Label Summary",
		"| Run ID | run-1 |",
		"| Status | COMPLETED |",
		"| inverter_clipping | flat_generation | 2 | 1 |",
		"| m-a | site-1 | 3 | 2 | 1 | 2 | 0 | inverter_clipping |",
		"| site-1 | 2024-01-02 | 0.4000 |",
		"| site-1 | 2024-01-03 | undefined |",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestFromRun(t *testing.T) {
	a := []domain.LabelRow{*row("m-a", 1, 10, 0, domain.LabelInverterClipping)}
	res := &orchestrator.RunResult{
		Run: domain.LabelRun{RunID: "live", Status: domain.RunStatusCompleted},
		Monitors: []*orchestrator.MonitorResult{
			{
				MonitorID:             "m-z",
				SiteID:                "s2",
				ClearSkyDays:          []domain.Date{jan(1)},
				CloudyOrUndefinedDays: 1,
				RejectedDays:          1,
			},
			{
				MonitorID:       "m-a",
				SiteID:          "s1",
				Rows:            a,
				ClippingSamples: 1,
				ClearSkyDays:    []domain.Date{jan(1), jan(2)},
				Ratios:          []clearsky.DailyRatio{{Date: jan(1), Ratio: 0.95, Defined: true}},
			},
		},
	}

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	report := FromRun(res, now)

	require.Len(t, report.Monitors, 2)
	assert.Equal(t, "m-a", report.Monitors[0].MonitorID)
	assert.Equal(t, 2, report.Monitors[0].ClearSkyDays)
	assert.Equal(t, 1, report.Monitors[0].ClippingRows)
	assert.Equal(t, 1, report.Monitors[1].RejectedDays)
	assert.Equal(t, now, report.GeneratedAt)

	require.Len(t, report.Sites, 2)
	assert.Equal(t, "s1", report.Sites[0].SiteID)
	assert.Equal(t, []string{"m-a", "m-z"}, report.Table.Monitors)
	assert.Equal(t, 1, report.Table.Len())
}
