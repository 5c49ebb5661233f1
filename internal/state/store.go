// Package state records the history of conversion runs in SQLite.
// It tracks runs and the per-file outcome of each run.
package state

import (
	"context"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// FileStatus is the outcome of one input file.
type FileStatus string

// File statuses.
const (
	FileStatusSuccess FileStatus = "success"
	FileStatusFailed  FileStatus = "failed"
	FileStatusSkipped FileStatus = "skipped"
)

// Run is one invocation of convert.
type Run struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      RunStatus  `json:"status"`
	OutputType  string     `json:"output_type"`
	OutputPath  string     `json:"output_path,omitempty"`
	GrammarPath string     `json:"grammar_path,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// RunInfo describes a run at creation.
type RunInfo struct {
	OutputType  string
	OutputPath  string
	GrammarPath string
}

// FileRun is the recorded outcome of one file within a run.
type FileRun struct {
	ID           string        `json:"id"`
	RunID        string        `json:"run_id"`
	Path         string        `json:"path"`
	Status       FileStatus    `json:"status"`
	Patents      int           `json:"patents"`
	Suppressed   int           `json:"suppressed"`
	MissingKeys  int           `json:"missing_keys"`
	Rows         int           `json:"rows"`
	SkippedLines int           `json:"skipped_lines"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// Store persists the run ledger.
type Store interface {
	CreateRun(ctx context.Context, info RunInfo) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error
	RecordFile(ctx context.Context, f *FileRun) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	ListFiles(ctx context.Context, runID string) ([]*FileRun, error)
	Close() error
}
