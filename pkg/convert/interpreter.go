// Package convert runs a grammar over APS text and produces table rows.
//
// One Interpreter may convert many files concurrently: all per-file state
// lives in a run created by Convert.
package convert

import (
	"io"
	"log/slog"

	"github.com/leapstack-labs/apstab/pkg/aps"
	"github.com/leapstack-labs/apstab/pkg/grammar"
	"github.com/leapstack-labs/apstab/pkg/ignore"
)

// progressEvery is the patent interval of progress logs.
const progressEvery = 100

// Options configure an Interpreter.
type Options struct {
	// Ignore vetoes (file, key) pairs. Nil ignores nothing.
	Ignore *ignore.Set
	// Encoding of input files. Empty means latin1.
	Encoding aps.Encoding
	// Continuation appends indented lines to the columns of the previous
	// field line. When false they are skipped.
	Continuation bool
	// SkipUnknownSections makes an unconfigured four-character code close
	// the current section; its fields are ignored until the next configured
	// section. When false such codes are ordinary fields.
	SkipUnknownSections bool
	// Logger receives per-file diagnostics. Nil means discard.
	Logger *slog.Logger
}

// Interpreter converts APS files with a fixed grammar.
type Interpreter struct {
	g    *grammar.Grammar
	opts Options
	log  *slog.Logger
}

// New returns an Interpreter for g.
func New(g *grammar.Grammar, opts Options) *Interpreter {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Interpreter{g: g, opts: opts, log: log}
}

// Grammar returns the interpreter's grammar.
func (in *Interpreter) Grammar() *grammar.Grammar { return in.g }

// Convert reads r and hands every row of every kept patent to emit.
// filename is the source identifier used by the ignore set and the
// filename field.
//
// Parsing anomalies never abort: they are counted in the result. A read or
// decode error, or an error from emit, stops the file and is returned with
// the partial result.
func (in *Interpreter) Convert(r io.Reader, filename string, emit EmitFunc) (*Result, error) {
	ru := &run{
		in:       in,
		filename: filename,
		emit:     emit,
		log:      in.log.With(slog.String("file", filename)),
		res:      &Result{File: filename, Stats: Stats{Tables: make(map[string]int)}},
	}
	err := ru.scan(aps.NewScanner(r, in.opts.Encoding))
	return ru.res, err
}

// Collect converts r and keeps the rows in Result.Records.
func (in *Interpreter) Collect(r io.Reader, filename string) (*Result, error) {
	var records []Record
	res, err := in.Convert(r, filename, func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	res.Records = records
	return res, err
}

// run is the state of one file.
type run struct {
	in       *Interpreter
	filename string
	emit     EmitFunc
	log      *slog.Logger
	res      *Result

	patent  *patentState
	section *grammar.Section
	row     *rowBuilder
	// lastCols are the columns written by the previous field line.
	lastCols []string
}

func (r *run) state() identityState {
	if r.patent == nil {
		return noPatentOpen
	}
	return r.patent.state
}

func (r *run) scan(sc *aps.Scanner) error {
	for sc.Scan() {
		line := sc.Line()
		r.res.Stats.Lines++
		switch line.Kind {
		case aps.Blank:
		case aps.Unrecognized:
			r.res.Stats.SkippedLines++
			r.log.Debug("skipping line", slog.Any("error", &aps.UnrecognizedLine{Number: line.Number, Text: line.Raw}))
		case aps.Continuation:
			r.continuation(line)
		case aps.Field:
			if err := r.field(line); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	r.closeSection()
	return r.finishPatent()
}

func (r *run) field(line aps.Line) error {
	if line.MayOpenSection() {
		if sec, ok := r.in.g.SectionFor(line.Code); ok {
			return r.openSection(sec, line)
		}
		if r.in.opts.SkipUnknownSections {
			r.closeSection()
			r.log.Debug("skipping unconfigured section", slog.String("code", line.Code), slog.Int("line", line.Number))
			return nil
		}
	}
	if r.section == nil {
		r.res.Stats.IgnoredFields++
		r.lastCols = nil
		return nil
	}
	r.applyField(line)
	return nil
}

func (r *run) openSection(sec *grammar.Section, line aps.Line) error {
	r.closeSection()
	if sec.IsRoot() {
		if err := r.finishPatent(); err != nil {
			return err
		}
		r.patent = newPatentState(line.Number)
		r.section = sec
		r.row = newRowBuilder(sec, r.filename)
		return nil
	}
	if r.patent == nil {
		r.log.Debug("section before first patent", slog.String("code", sec.Code), slog.Int("line", line.Number))
		return nil
	}
	r.section = sec
	r.row = newRowBuilder(sec, r.filename)
	return nil
}

func (r *run) applyField(line aps.Line) {
	sec := r.section
	if sec.IsRoot() && r.state() == patentOpenPending && line.Code == sec.PrimaryKey {
		r.resolveKey(line.Value)
	}

	marker := sec.IsMarker(line.Code)
	if marker {
		r.splitRow()
	}

	rules := sec.Match(line.Code)
	if len(rules) == 0 {
		if !marker {
			r.res.Stats.IgnoredFields++
		}
		r.lastCols = nil
		return
	}

	cols := make([]string, 0, len(rules))
	for _, rule := range rules {
		if r.row.repeats(rule) {
			r.splitRow()
		}
		r.row.apply(rule, line.Value)
		if rule.Column != "" {
			cols = append(cols, rule.Column)
		}
	}
	r.lastCols = cols
}

func (r *run) continuation(line aps.Line) {
	if !r.in.opts.Continuation || r.row == nil || len(r.lastCols) == 0 {
		r.res.Stats.SkippedLines++
		return
	}
	for _, col := range r.lastCols {
		r.row.extend(col, line.Value)
	}
}

// splitRow finalizes the current row, if it holds anything, and starts the
// next row of the same section.
func (r *run) splitRow() {
	if r.row.touched {
		r.patent.materialize(r.row, r.in.g.ParentColumn())
	}
	r.row = newRowBuilder(r.section, r.filename)
	r.lastCols = nil
}

// closeSection finalizes the open row. The root row is always kept.
func (r *run) closeSection() {
	row := r.row
	r.row = nil
	r.section = nil
	r.lastCols = nil
	if row == nil {
		return
	}
	if row.root {
		if r.state() == patentOpenPending {
			r.missingKey()
		}
		r.patent.materialize(row, r.in.g.ParentColumn())
		return
	}
	if row.touched {
		r.patent.materialize(row, r.in.g.ParentColumn())
	}
}

func (r *run) resolveKey(key string) {
	r.patent.resolve(key)
	if r.in.opts.Ignore.Contains(r.filename, key) {
		r.patent.suppress = true
		r.log.Info("ignoring patent", slog.String("key", key))
	}
}

func (r *run) missingKey() {
	r.patent.resolveMissing()
	w := MissingPrimaryKeyWarning{File: r.filename, Line: r.patent.line, Field: r.in.g.Root().PrimaryKey}
	r.res.Stats.MissingKeys++
	r.res.Warnings = append(r.res.Warnings, w)
	r.log.Warn("patent without primary key", slog.Int("line", w.Line), slog.String("field", w.Field))
}

// finishPatent hands the buffered rows off, or drops them when suppressed.
func (r *run) finishPatent() error {
	p := r.patent
	if p == nil {
		return nil
	}
	r.patent = nil
	r.res.Stats.Patents++
	if r.res.Stats.Patents%progressEvery == 1 {
		r.log.Debug("processing document", slog.Int("n", r.res.Stats.Patents))
	}
	if p.suppress {
		r.res.Stats.Suppressed++
		return nil
	}
	for _, rec := range p.records {
		if err := r.emit(rec); err != nil {
			return err
		}
		r.res.Stats.Rows++
		r.res.Stats.Tables[rec.Table]++
	}
	return nil
}
