package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
)

var errNotConnected = errors.New("database connection not established")

// CatalogFunc builds a query returning one row when table exists.
type CatalogFunc func(table string) sq.SelectBuilder

// InformationSchema looks tables up in information_schema.tables.
func InformationSchema(table string) sq.SelectBuilder {
	return sq.Select("table_name").From("information_schema.tables").Where(sq.Eq{"table_name": table})
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BaseSQLSink provides the database/sql side of a relational sink.
// Embed this struct in concrete sinks and set DB in Connect.
//
// Every column is TEXT. Rows are written inside a transaction that is
// committed by Flush, so a file whose write fails leaves nothing behind.
type BaseSQLSink struct {
	DB     *sql.DB
	Cfg    Config
	Logger *slog.Logger
	// Placeholder formats bind parameters. Nil means sq.Question.
	Placeholder sq.PlaceholderFormat
	// Catalog is used by Existing and Open. Nil means InformationSchema.
	Catalog CatalogFunc

	mu sync.Mutex
	tx *sql.Tx
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (b *BaseSQLSink) placeholder() sq.PlaceholderFormat {
	if b.Placeholder == nil {
		return sq.Question
	}
	return b.Placeholder
}

func (b *BaseSQLSink) log() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

func (b *BaseSQLSink) conn() querier {
	if b.tx != nil {
		return b.tx
	}
	return b.DB
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLSink) IsConnected() bool {
	return b.DB != nil
}

// Existing returns the tables that are already present.
func (b *BaseSQLSink) Existing(ctx context.Context, tables []string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DB == nil {
		return nil, errNotConnected
	}
	var out []string
	for _, t := range tables {
		ok, err := b.exists(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (b *BaseSQLSink) exists(ctx context.Context, table string) (bool, error) {
	catalog := b.Catalog
	if catalog == nil {
		catalog = InformationSchema
	}
	query, args, err := catalog(table).PlaceholderFormat(b.placeholder()).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build catalog query: %w", err)
	}
	var name string
	err = b.conn().QueryRowContext(ctx, query, args...).Scan(&name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("failed to look up table %s: %w", table, err)
	}
	return true, nil
}

// Clean drops the given tables.
func (b *BaseSQLSink) Clean(ctx context.Context, tables []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DB == nil {
		return errNotConnected
	}
	for _, t := range tables {
		b.log().Debug("dropping table", slog.String("table", t))
		if _, err := b.conn().ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdent(t)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t, err)
		}
	}
	return nil
}

// Open creates table or adds the columns it lacks.
func (b *BaseSQLSink) Open(ctx context.Context, table string, columns []string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DB == nil {
		return nil, errNotConnected
	}
	// DDL must not be rolled back with a failed file's rows.
	if err := b.commitLocked(); err != nil {
		return nil, err
	}

	ok, err := b.exists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, err := b.DB.ExecContext(ctx, createTableSQL(table, columns)); err != nil {
			return nil, fmt.Errorf("failed to create table %s: %w", table, err)
		}
		b.log().Debug("created table", slog.String("table", table), slog.Int("columns", len(columns)))
		return NewHandle(table, columns), nil
	}

	have, err := b.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, c := range columns {
		if have[c] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", QuoteIdent(table), QuoteIdent(c))
		if _, err := b.DB.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to add column %s.%s: %w", table, c, err)
		}
		b.log().Debug("added column", slog.String("table", table), slog.String("column", c))
	}
	return NewHandle(table, columns), nil
}

func (b *BaseSQLSink) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := b.DB.QueryContext(ctx, "SELECT * FROM "+QuoteIdent(table)+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	have := make(map[string]bool, len(names))
	for _, n := range names {
		have[n] = true
	}
	return have, rows.Err()
}

func createTableSQL(table string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = QuoteIdent(c) + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", QuoteIdent(table), strings.Join(defs, ", "))
}

// WriteRow inserts row into the table of h.
func (b *BaseSQLSink) WriteRow(ctx context.Context, h Handle, row Row) error {
	vals, err := Values(h.Columns(), row)
	if err != nil {
		return &WriteError{Table: h.Table(), Err: err}
	}
	cols := make([]string, len(h.Columns()))
	for i, c := range h.Columns() {
		cols[i] = QuoteIdent(c)
	}
	query, args, err := sq.Insert(QuoteIdent(h.Table())).
		Columns(cols...).
		Values(vals...).
		PlaceholderFormat(b.placeholder()).
		ToSql()
	if err != nil {
		return &WriteError{Table: h.Table(), Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DB == nil {
		return &WriteError{Table: h.Table(), Err: errNotConnected}
	}
	if b.tx == nil {
		tx, err := b.DB.BeginTx(ctx, nil)
		if err != nil {
			return &WriteError{Table: h.Table(), Err: fmt.Errorf("failed to begin transaction: %w", err)}
		}
		b.tx = tx
	}
	if _, err := b.tx.ExecContext(ctx, query, args...); err != nil {
		_ = b.tx.Rollback()
		b.tx = nil
		return &WriteError{Table: h.Table(), Err: err}
	}
	return nil
}

// Flush commits rows written since the last flush.
func (b *BaseSQLSink) Flush(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commitLocked()
}

func (b *BaseSQLSink) commitLocked() error {
	if b.tx == nil {
		return nil
	}
	tx := b.tx
	b.tx = nil
	if err := tx.Commit(); err != nil {
		return &WriteError{Err: fmt.Errorf("failed to commit: %w", err)}
	}
	return nil
}

// Close commits pending rows and closes the database connection.
func (b *BaseSQLSink) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.DB == nil {
		return nil
	}
	b.log().Debug("closing database connection")
	commitErr := b.commitLocked()
	closeErr := b.DB.Close()
	b.DB = nil
	return errors.Join(commitErr, closeErr)
}
