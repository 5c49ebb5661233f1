// Package memory keeps tables in process. It backs dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Table is one in-memory table.
type Table struct {
	Columns []string
	Rows    []sink.Row
}

type handle struct {
	name    string
	columns []string
}

func (h *handle) Table() string     { return h.name }
func (h *handle) Columns() []string { return h.columns }

// Sink stores rows in memory. Data survives Close so it can be inspected.
type Sink struct {
	logger *slog.Logger

	mu     sync.Mutex
	tables map[string]*Table
}

// New creates a memory sink.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{logger: logger, tables: make(map[string]*Table)}
}

// Connect is a no-op.
func (s *Sink) Connect(context.Context, sink.Config) error { return nil }

// Existing returns tables holding at least one row.
func (s *Sink) Existing(_ context.Context, tables []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, t := range tables {
		if tbl, ok := s.tables[t]; ok && len(tbl.Rows) > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}

// Clean drops the given tables.
func (s *Sink) Clean(_ context.Context, tables []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tables {
		delete(s.tables, t)
	}
	return nil
}

// Open creates the table or extends its columns.
func (s *Sink) Open(_ context.Context, table string, columns []string) (sink.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, ok := s.tables[table]
	if !ok {
		tbl = &Table{}
		s.tables[table] = tbl
	}
	have := make(map[string]bool, len(tbl.Columns))
	for _, c := range tbl.Columns {
		have[c] = true
	}
	for _, c := range columns {
		if !have[c] {
			tbl.Columns = append(tbl.Columns, c)
		}
	}
	return &handle{name: table, columns: append([]string(nil), columns...)}, nil
}

// WriteRow appends a copy of row.
func (s *Sink) WriteRow(_ context.Context, h sink.Handle, row sink.Row) error {
	if _, err := sink.Values(h.Columns(), row); err != nil {
		return &sink.WriteError{Table: h.Table(), Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl, ok := s.tables[h.Table()]
	if !ok {
		return &sink.WriteError{Table: h.Table(), Err: fmt.Errorf("table %s is not open", h.Table())}
	}
	cp := make(sink.Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	tbl.Rows = append(tbl.Rows, cp)
	return nil
}

// Flush is a no-op.
func (s *Sink) Flush(context.Context) error { return nil }

// Close is a no-op.
func (s *Sink) Close() error { return nil }

// Table returns the named table, or nil.
func (s *Sink) Table(name string) *Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[name]
}

// Rows returns the rows of a table.
func (s *Sink) Rows(name string) []sink.Row {
	if t := s.Table(name); t != nil {
		return t.Rows
	}
	return nil
}

// Counts returns the row count of every table.
func (s *Sink) Counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.tables))
	for name, t := range s.tables {
		out[name] = len(t.Rows)
	}
	return out
}

var _ sink.Sink = (*Sink)(nil)
