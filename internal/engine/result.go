package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/apstab/internal/state"
	"github.com/leapstack-labs/apstab/pkg/convert"
)

// FileResult is the outcome of one input file.
type FileResult struct {
	Path     string
	Status   state.FileStatus
	Stats    convert.Stats
	Warnings []convert.MissingPrimaryKeyWarning
	Duration time.Duration
	Err      error
}

// Summary describes a whole run.
type Summary struct {
	// RunID is the ledger id, empty when the ledger is disabled.
	RunID    string
	Files    []FileResult
	Total    convert.Stats
	Failed   int
	Skipped  int
	Duration time.Duration
}

// HasFailures reports whether any file failed.
func (s *Summary) HasFailures() bool { return s.Failed > 0 }

// Err joins the errors of failed files.
func (s *Summary) Err() error {
	var errs []error
	for _, f := range s.Files {
		if f.Err != nil && f.Status == state.FileStatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
		}
	}
	return errors.Join(errs...)
}

func (s *Summary) add(f FileResult) {
	s.Files = append(s.Files, f)
	switch f.Status {
	case state.FileStatusFailed:
		s.Failed++
	case state.FileStatusSkipped:
		s.Skipped++
	case state.FileStatusSuccess:
		s.Total.Add(f.Stats)
	}
}

func (s *Summary) runStatus(ctxErr error) (state.RunStatus, string) {
	switch {
	case ctxErr != nil:
		return state.RunStatusCancelled, ctxErr.Error()
	case s.Failed > 0:
		return state.RunStatusFailed, fmt.Sprintf("%d file(s) failed", s.Failed)
	default:
		return state.RunStatusCompleted, ""
	}
}
