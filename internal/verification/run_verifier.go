package verification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pv-fault-lab/internal/domain"
	"pv-fault-lab/internal/orchestrator"
	"pv-fault-lab/internal/storage"
)

// ErrRunNotFound is returned when run ID doesn't exist.
var ErrRunNotFound = errors.New("run not found")

// Relabeller labels a range without persisting.
type Relabeller interface {
	Run(ctx context.Context, req orchestrator.RunRequest) (*orchestrator.RunResult, error)
}

// RunVerifier re-labels a stored run and compares against its stored labels.
type RunVerifier struct {
	runStore          storage.RunStore
	monitorStore      storage.MonitorStore
	labelStore        storage.LabelStore
	relabeller        Relabeller
	configFingerprint string
}

// RunVerifierOptions contains configuration for creating a RunVerifier.
type RunVerifierOptions struct {
	RunStore          storage.RunStore
	MonitorStore      storage.MonitorStore
	LabelStore        storage.LabelStore
	Relabeller        Relabeller
	ConfigFingerprint string // fingerprint of the config the relabeller runs with
}

// NewRunVerifier creates a new RunVerifier.
func NewRunVerifier(opts RunVerifierOptions) *RunVerifier {
	return &RunVerifier{
		runStore:          opts.RunStore,
		monitorStore:      opts.MonitorStore,
		labelStore:        opts.LabelStore,
		relabeller:        opts.Relabeller,
		configFingerprint: opts.ConfigFingerprint,
	}
}

// VerifyRun re-labels every monitor over the run's range and compares with stored labels.
// Stored labels are the latest write for each monitor and range, so a later overlapping run diverges.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationReport, error) {
	// 1. Load stored run
	run, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Relabel without persisting
	r := domain.DateRange{From: run.RangeFrom, To: run.RangeTo}
	result, err := v.relabeller.Run(ctx, orchestrator.RunRequest{Range: r, DryRun: true})
	if err != nil {
		return nil, fmt.Errorf("relabel %s: %w", runID, err)
	}
	relabelled := result.Rows()

	// 3. Compare per monitor
	monitors, err := v.monitorStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	ids := make([]string, 0, len(monitors))
	for _, m := range monitors {
		ids = append(ids, m.MonitorID)
	}
	sort.Strings(ids)

	report := &VerificationReport{
		RunID:       runID,
		ConfigMatch: run.ConfigFingerprint == v.configFingerprint,
	}
	start, end := r.From.In(time.UTC), r.To.In(time.UTC)
	for _, id := range ids {
		stored, err := v.labelStore.GetByMonitorRange(ctx, id, start, end)
		if err != nil {
			return nil, fmt.Errorf("load labels of %s: %w", id, err)
		}
		fresh := relabelled[id]
		if len(stored) == 0 && len(fresh) == 0 {
			continue
		}

		storedRows := make([]domain.LabelRow, len(stored))
		for i, row := range stored {
			storedRows[i] = *row
		}
		divergences := CompareLabelRows(storedRows, fresh)

		mv := MonitorVerification{
			MonitorID:      id,
			Match:          len(divergences) == 0,
			StoredRows:     len(storedRows),
			RelabelledRows: len(fresh),
			Divergences:    divergences,
		}
		report.Results = append(report.Results, mv)
		report.TotalMonitors++
		if mv.Match {
			report.MatchedMonitors++
		} else {
			report.DivergentMonitors++
		}
	}

	return report, nil
}
