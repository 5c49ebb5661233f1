package engine

// run.go - parallel parsing and ordered writing of input files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/apstab/internal/state"
	"github.com/leapstack-labs/apstab/pkg/convert"
)

// parsed is a converted file waiting for the writer.
type parsed struct {
	path     string
	res      *convert.Result
	err      error
	duration time.Duration
}

// Run converts files and writes their rows in input order.
//
// Files are parsed on a pool of workers; at most twice as many files as
// workers are held in memory before being written. A per-file failure is
// recorded in the summary and does not stop the run. Cancelling ctx stops
// dispatching files; files already parsing are finished and written, the
// rest are reported as skipped.
//
// The returned error is non-nil only when the output could not be prepared
// or ctx was cancelled.
func (e *Engine) Run(ctx context.Context, files []string) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}

	e.logger.Info("starting run", "files", len(files), "workers", e.workers)

	if err := e.ensureSinkReady(ctx); err != nil {
		return summary, err
	}

	// Writes outlive cancellation so that in-flight files land whole.
	wctx := context.WithoutCancel(ctx)
	runID := e.createRun(wctx)
	summary.RunID = runID

	window := 2 * e.workers
	slots := make(chan struct{}, window)
	pending := make(chan chan parsed, window)

	var pool errgroup.Group
	pool.SetLimit(e.workers)

	dispatched := 0
	go func() {
		defer close(pending)
		for _, path := range files {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				<-slots
				return
			}
			out := make(chan parsed, 1)
			pending <- out
			dispatched++
			pool.Go(func() error {
				out <- e.parse(path)
				return nil
			})
		}
	}()

	for out := range pending {
		p := <-out
		fr := e.write(wctx, p)
		<-slots
		summary.add(fr)
		e.recordFile(wctx, runID, fr)
	}
	_ = pool.Wait()

	for _, path := range files[dispatched:] {
		fr := FileResult{Path: path, Status: state.FileStatusSkipped, Err: ctx.Err()}
		summary.add(fr)
		e.recordFile(wctx, runID, fr)
	}

	summary.Duration = time.Since(start)
	status, msg := summary.runStatus(ctx.Err())
	e.completeRun(wctx, runID, status, msg)

	e.logger.Info("run finished",
		"status", string(status),
		"files", len(summary.Files),
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"patents", summary.Total.Patents,
		"rows", summary.Total.Rows,
		"duration_ms", summary.Duration.Milliseconds())

	return summary, ctx.Err()
}

func (e *Engine) parse(path string) parsed {
	start := time.Now()
	p := parsed{path: path}

	f, err := os.Open(path) //nolint:gosec // G304: path comes from discovery
	if err != nil {
		p.err = fmt.Errorf("failed to open input: %w", err)
		p.duration = time.Since(start)
		return p
	}
	defer func() { _ = f.Close() }()

	e.logger.Debug("parsing file", "path", path)
	p.res, p.err = e.interp.Collect(f, filepath.Base(path))
	p.duration = time.Since(start)
	return p
}

// write hands one file's rows to the sink and commits them. A file whose
// parse failed writes nothing.
func (e *Engine) write(ctx context.Context, p parsed) FileResult {
	fr := FileResult{Path: p.path, Status: state.FileStatusSuccess}
	if p.res != nil {
		fr.Stats = p.res.Stats
		fr.Warnings = p.res.Warnings
	}

	fail := func(err error) FileResult {
		fr.Status = state.FileStatusFailed
		fr.Err = err
		fr.Duration = p.duration
		e.logger.Error("file failed", "path", p.path, "error", err)
		return fr
	}

	if p.err != nil {
		return fail(p.err)
	}

	start := time.Now()
	for _, rec := range p.res.Records {
		h, ok := e.handles[rec.Table]
		if !ok {
			return fail(fmt.Errorf("no open table %s", rec.Table))
		}
		if err := e.sink.WriteRow(ctx, h, rec.Row); err != nil {
			return fail(err)
		}
	}
	if err := e.sink.Flush(ctx); err != nil {
		return fail(err)
	}
	fr.Duration = p.duration + time.Since(start)

	e.logger.Info("records processed",
		"path", p.path,
		"patents", fr.Stats.Patents,
		"rows", fr.Stats.Rows,
		"suppressed", fr.Stats.Suppressed,
		"missing_keys", fr.Stats.MissingKeys)
	return fr
}

// --- ledger ---

func (e *Engine) createRun(ctx context.Context) string {
	if e.store == nil {
		return ""
	}
	run, err := e.store.CreateRun(ctx, e.runInfo)
	if err != nil {
		e.logger.Warn("failed to record run", "error", err)
		return ""
	}
	e.logger.Debug("created run", "run_id", run.ID)
	return run.ID
}

func (e *Engine) recordFile(ctx context.Context, runID string, fr FileResult) {
	if e.store == nil || runID == "" {
		return
	}
	f := &state.FileRun{
		RunID:        runID,
		Path:         fr.Path,
		Status:       fr.Status,
		Patents:      fr.Stats.Patents,
		Suppressed:   fr.Stats.Suppressed,
		MissingKeys:  fr.Stats.MissingKeys,
		Rows:         fr.Stats.Rows,
		SkippedLines: fr.Stats.SkippedLines,
		Duration:     fr.Duration,
	}
	if fr.Err != nil {
		f.Error = fr.Err.Error()
	}
	if err := e.store.RecordFile(ctx, f); err != nil {
		e.logger.Warn("failed to record file", "path", fr.Path, "error", err)
	}
}

func (e *Engine) completeRun(ctx context.Context, runID string, status state.RunStatus, msg string) {
	if e.store == nil || runID == "" {
		return
	}
	if err := e.store.CompleteRun(ctx, runID, status, msg); err != nil {
		e.logger.Warn("failed to complete run", "run_id", runID, "error", err)
	}
}
