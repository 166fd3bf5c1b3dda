package domain

import "time"

// RunStatus is the completion state of a labelling run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusPartial   RunStatus = "PARTIAL" // finished with per-monitor errors
	RunStatusFailed    RunStatus = "FAILED"
)

// LabelRun records one execution of the labelling pipeline.
// Corresponds to label_runs table in PostgreSQL.
type LabelRun struct {
	RunID             string
	RangeFrom         Date
	RangeTo           Date // exclusive
	MonitorCount      int
	MonitorsLabelled  int
	MonitorsSkipped   int
	RowsWritten       int
	Status            RunStatus
	ConfigFingerprint string
	StartedAt         time.Time
	FinishedAt        time.Time
	Errors            []string
}
