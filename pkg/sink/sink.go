// Package sink defines the table sink contract that converted rows are
// written to.
//
// Concrete sinks live in pkg/sinks/ subdirectories and register themselves
// by name in their init functions.
package sink

import (
	"context"
	"fmt"
	"sort"
)

// Row maps column names to values. A column absent from the map is NULL.
type Row map[string]string

// Config holds sink connection settings.
type Config struct {
	// Type is the registered sink name.
	Type string
	// Path is the output directory for file-based sinks.
	Path string
	// DSN is the connection string for server-based sinks.
	DSN string
	// Options are string settings passed through to the driver.
	Options map[string]string
	// Params are structured sink-specific settings.
	Params map[string]any
}

// Handle identifies an opened table.
type Handle interface {
	Table() string
	Columns() []string
}

// Sink receives finished rows keyed by table.
//
// Implementations must be safe for concurrent use: writes to the same table
// never interleave.
type Sink interface {
	// Connect prepares the output location.
	Connect(ctx context.Context, cfg Config) error

	// Existing returns the subset of tables that already hold output.
	Existing(ctx context.Context, tables []string) ([]string, error)

	// Clean discards prior output of the given tables. Call before Open.
	Clean(ctx context.Context, tables []string) error

	// Open creates the table if needed and adds missing columns.
	Open(ctx context.Context, table string, columns []string) (Handle, error)

	// WriteRow appends one row.
	WriteRow(ctx context.Context, h Handle, row Row) error

	// Flush makes every row written so far durable.
	Flush(ctx context.Context) error

	// Close flushes and releases all tables.
	Close() error
}

// WriteError wraps a failure to persist rows.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("sink write failed: %v", e.Err)
	}
	return fmt.Sprintf("sink write to %s failed: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// table is the Handle shared by the built-in sinks.
type table struct {
	name    string
	columns []string
}

func (t *table) Table() string     { return t.name }
func (t *table) Columns() []string { return t.columns }

// NewHandle returns a Handle for sinks that need no per-table state.
func NewHandle(name string, columns []string) Handle {
	return &table{name: name, columns: append([]string(nil), columns...)}
}

// Values orders row values by columns. Absent columns are nil. A key of row
// that is not one of columns is an error.
func Values(columns []string, row Row) ([]any, error) {
	vals := make([]any, len(columns))
	matched := 0
	for i, c := range columns {
		if v, ok := row[c]; ok {
			vals[i] = v
			matched++
		}
	}
	if matched != len(row) {
		col, _ := unknownColumn(columns, row)
		return nil, fmt.Errorf("unknown column %q", col)
	}
	return vals, nil
}

func unknownColumn(columns []string, row Row) (string, bool) {
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	var unknown []string
	for c := range row {
		if !known[c] {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) == 0 {
		return "", false
	}
	sort.Strings(unknown)
	return unknown[0], true
}
