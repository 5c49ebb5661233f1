// Package csv writes one delimited file per table.
package csv

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Ext is the file extension of table files.
const Ext = ".csv"

type tableFile struct {
	name    string
	columns []string

	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
	w   *csv.Writer
}

func (t *tableFile) Table() string     { return t.name }
func (t *tableFile) Columns() []string { return t.columns }

func (t *tableFile) flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return err
	}
	return t.buf.Flush()
}

// Sink writes <table>.csv files into the output directory. A new file gets
// a header row; an existing file is appended to.
type Sink struct {
	logger *slog.Logger
	dir    string

	mu     sync.Mutex
	tables map[string]*tableFile
}

// New creates a CSV sink. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{logger: logger, tables: make(map[string]*tableFile)}
}

// Connect creates the output directory.
func (s *Sink) Connect(_ context.Context, cfg sink.Config) error {
	dir := cfg.Path
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	s.dir = dir
	return nil
}

func (s *Sink) path(table string) string {
	return filepath.Join(s.dir, table+Ext)
}

// Existing returns the tables whose file already exists.
func (s *Sink) Existing(_ context.Context, tables []string) ([]string, error) {
	var out []string
	for _, t := range tables {
		_, err := os.Stat(s.path(t))
		switch {
		case err == nil:
			out = append(out, t)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to stat %s: %w", s.path(t), err)
		}
	}
	return out, nil
}

// Clean removes the files of the given tables.
func (s *Sink) Clean(_ context.Context, tables []string) error {
	for _, t := range tables {
		if err := os.Remove(s.path(t)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", s.path(t), err)
		}
		s.logger.Debug("removed table file", slog.String("path", s.path(t)))
	}
	return nil
}

// Open opens the table file for appending.
func (s *Sink) Open(_ context.Context, table string, columns []string) (sink.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil, errors.New("csv sink not connected")
	}
	if t, ok := s.tables[table]; ok {
		if !slices.Equal(t.columns, columns) {
			return nil, fmt.Errorf("table %s already open with different columns", table)
		}
		return t, nil
	}

	path := s.path(table)
	header, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	if header != nil && !slices.Equal(header, columns) {
		return nil, fmt.Errorf("%s has columns %v, expected %v; rerun with --clean", path, header, columns)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640) //nolint:gosec // G304: path is output dir + table name
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	buf := bufio.NewWriter(f)
	t := &tableFile{name: table, columns: append([]string(nil), columns...), f: f, buf: buf, w: csv.NewWriter(buf)}
	if header == nil {
		if err := t.w.Write(columns); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to write header of %s: %w", path, err)
		}
	} else {
		s.logger.Debug("CSV file exists; records will be appended", slog.String("path", path))
	}
	s.tables[table] = t
	return t, nil
}

// readHeader returns nil when the file is missing or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is output dir + table name
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	header, err := csv.NewReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	return header, nil
}

// WriteRow appends one record. Absent columns are written empty.
func (s *Sink) WriteRow(_ context.Context, h sink.Handle, row sink.Row) error {
	t, ok := h.(*tableFile)
	if !ok {
		return &sink.WriteError{Table: h.Table(), Err: fmt.Errorf("foreign handle %T", h)}
	}
	vals, err := sink.Values(t.columns, row)
	if err != nil {
		return &sink.WriteError{Table: t.name, Err: err}
	}
	record := make([]string, len(vals))
	for i, v := range vals {
		if v != nil {
			record[i] = v.(string)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.w.Write(record); err != nil {
		return &sink.WriteError{Table: t.name, Err: err}
	}
	return nil
}

// Flush writes buffered records of every table to disk.
func (s *Sink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, t := range s.tables {
		if err := t.flush(); err != nil {
			errs = append(errs, &sink.WriteError{Table: t.name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close flushes and closes every table file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for name, t := range s.tables {
		if err := t.flush(); err != nil {
			errs = append(errs, &sink.WriteError{Table: name, Err: err})
		}
		if err := t.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", t.f.Name(), err))
		}
		delete(s.tables, name)
	}
	return errors.Join(errs...)
}

var _ sink.Sink = (*Sink)(nil)
