// Package sqlite writes tables into a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	"github.com/leapstack-labs/apstab/pkg/sink"

	_ "modernc.org/sqlite" // pure Go sqlite driver
)

// FileName is the database file created in the output directory.
const FileName = "db.sqlite"

// Bulk load settings applied to every connection.
const pragmas = "?_pragma=synchronous(off)&_pragma=journal_mode(memory)"

// Sink implements sink.Sink for SQLite.
type Sink struct {
	sink.BaseSQLSink
}

// New creates a SQLite sink. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{
		BaseSQLSink: sink.BaseSQLSink{
			Logger:      logger,
			Placeholder: sq.Question,
			Catalog:     catalog,
		},
	}
}

func catalog(table string) sq.SelectBuilder {
	return sq.Select("name").From("sqlite_master").Where(sq.Eq{"type": "table", "name": table})
}

// Path returns the database file for an output directory.
func Path(dir string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, FileName)
}

// Connect opens <output_path>/db.sqlite, creating it if needed.
// cfg.DSN overrides the file location.
func (s *Sink) Connect(ctx context.Context, cfg sink.Config) error {
	dsn := cfg.DSN
	if dsn == "" {
		dir := cfg.Path
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		dsn = Path(dir) + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Transactions and DDL share the single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s.Logger.Debug("connected to sqlite", slog.String("dsn", dsn))
	s.DB = db
	s.Cfg = cfg
	return nil
}

var _ sink.Sink = (*Sink)(nil)
