package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/reporting"
)

// GeneratorVersion is recorded in every report for reproducibility.
const GeneratorVersion = "1.0.0"

// Output file names.
const (
	SummaryFile = "LABEL_SUMMARY.md"
	LabelsCSV   = "labels.csv"
	RatiosCSV   = "daily_ratios.csv"
	LabelsXLSX  = "labels.xlsx"
)

// LabelPipeline runs a labelling pass and writes its outputs.
type LabelPipeline struct {
	orch               *orchestrator.Orchestrator
	sufficiencyChecker *SufficiencyChecker
	outputDir          string
	clock              func() time.Time
	skipXLSX           bool
	dataSource         string // "fixtures" or "db" for replay command
	postgresDSN        string
	clickhouseDSN      string
}

// NewLabelPipeline creates a new pipeline writing into outputDir.
func NewLabelPipeline(orch *orchestrator.Orchestrator, outputDir string) *LabelPipeline {
	return &LabelPipeline{
		orch:      orch,
		outputDir: outputDir,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// WithSufficiencyChecker adds input checks run before labelling.
func (p *LabelPipeline) WithSufficiencyChecker(checker *SufficiencyChecker) *LabelPipeline {
	p.sufficiencyChecker = checker
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *LabelPipeline) WithClock(clock func() time.Time) *LabelPipeline {
	p.clock = clock
	return p
}

// WithoutXLSX skips the workbook output.
func (p *LabelPipeline) WithoutXLSX() *LabelPipeline {
	p.skipXLSX = true
	return p
}

// WithDataSource sets the data source for reproducibility metadata.
// Use "fixtures" for fixture mode. For DB mode, use WithDBSource instead.
func (p *LabelPipeline) WithDataSource(source string) *LabelPipeline {
	p.dataSource = source
	return p
}

// WithDBSource sets the data source to DB mode with actual DSN values for replay command.
func (p *LabelPipeline) WithDBSource(postgresDSN, clickhouseDSN string) *LabelPipeline {
	p.dataSource = "db"
	p.postgresDSN = postgresDSN
	p.clickhouseDSN = clickhouseDSN
	return p
}

// Run executes the labelling run and writes output files:
// - LABEL_SUMMARY.md
// - labels.csv
// - daily_ratios.csv
// - labels.xlsx
func (p *LabelPipeline) Run(ctx context.Context, req orchestrator.RunRequest) (*reporting.Report, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	// 1. Input checks (if configured)
	var dataQuality reporting.DataQualitySection
	if p.sufficiencyChecker != nil {
		suffResult, err := p.sufficiencyChecker.Check(ctx, req.Range, req.MonitorIDs)
		if err != nil {
			return nil, err
		}
		dataQuality = convertToDataQuality(suffResult)
	}

	// 2. Label
	result, err := p.orch.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	// 3. Build report
	report := reporting.FromRun(result, p.clock())
	if len(result.Errors) > 0 {
		dataQuality.IntegrityErrors = append(dataQuality.IntegrityErrors, result.Errors...)
		dataQuality.AllChecksPassed = false
	}
	report.DataQuality = dataQuality
	p.populateReproducibility(report, req)

	// 4. Write outputs
	files := map[string][]byte{
		SummaryFile: []byte(reporting.RenderMarkdown(report)),
		LabelsCSV:   []byte(reporting.RenderCSV(report.Table)),
		RatiosCSV:   []byte(reporting.RenderRatiosCSV(report.Sites)),
	}
	if !p.skipXLSX {
		workbook, err := reporting.BuildXLSX(report)
		if err != nil {
			return nil, err
		}
		files[LabelsXLSX] = workbook
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(p.outputDir, name), data, 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	return report, nil
}

// populateReproducibility fills in reproducibility metadata.
func (p *LabelPipeline) populateReproducibility(report *reporting.Report, req orchestrator.RunRequest) {
	report.Reproducibility = reporting.ReproducibilityMetadata{
		ReportTimestamp:   p.clock(),
		GeneratorVersion:  GeneratorVersion,
		ConfigFingerprint: report.Run.ConfigFingerprint,
		DataVersion:       computeDataVersion(report.Table),
		CommitHash:        getGitCommitHash(),
		ReplayCommand:     p.buildReplayCommand(req),
	}
}

// buildReplayCommand returns the command to reproduce this report.
func (p *LabelPipeline) buildReplayCommand(req orchestrator.RunRequest) string {
	rangeFlags := fmt.Sprintf("--from %s --to %s", req.Range.From, req.Range.To)
	if len(req.MonitorIDs) > 0 {
		rangeFlags += " --monitors " + strings.Join(req.MonitorIDs, ",")
	}
	switch p.dataSource {
	case "db":
		return fmt.Sprintf("go run ./cmd/labeller %s --postgres-dsn %q --clickhouse-dsn %q",
			rangeFlags, p.postgresDSN, p.clickhouseDSN)
	default:
		return "go run ./cmd/labeller --use-fixtures " + rangeFlags
	}
}

// computeDataVersion hashes every label row so any change in the output changes the version.
func computeDataVersion(t *reporting.FleetTable) string {
	h := sha256.New()
	for i, ts := range t.Index {
		for _, r := range t.Cells[i] {
			if r == nil {
				continue
			}
			fmt.Fprintf(h, "%s|%s|%d|%t|%d\n",
				r.MonitorID, ts.Format(reporting.TimeLayout), r.Labels, r.IsClipping, r.SegmentDuration)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:12] // short hash
}

// getGitCommitHash returns current git commit hash or "unknown" if not in git repo.
func getGitCommitHash() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out.String())
}

// convertToDataQuality converts SufficiencyResult to reporting.DataQualitySection.
func convertToDataQuality(result *SufficiencyResult) reporting.DataQualitySection {
	checks := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return reporting.DataQualitySection{
		SufficiencyChecks: checks,
		IntegrityErrors:   result.Errors,
		AllChecksPassed:   result.AllPass,
	}
}
