// Package duckdb writes tables into a DuckDB database file.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/apstab/pkg/sink"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// FileName is the database file created in the output directory.
const FileName = "db.duckdb"

// Params holds DuckDB-specific configuration.
// Parsed from sink.Config.Params using mapstructure.
type Params struct {
	// Settings to apply at connect (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`
}

// Sink implements sink.Sink for DuckDB.
type Sink struct {
	sink.BaseSQLSink
}

// New creates a DuckDB sink. If logger is nil, a discard logger is used.
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
	return sink.InformationSchema(table).Where(sq.Eq{"table_schema": "main"})
}

// ParseParams decodes the params map.
func ParseParams(raw map[string]any) (*Params, error) {
	var p Params
	if raw == nil {
		return &p, nil
	}
	if err := mapstructure.Decode(raw, &p); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return &p, nil
}

// Connect opens <output_path>/db.duckdb. Use DSN ":memory:" for an
// in-memory database.
func (s *Sink) Connect(ctx context.Context, cfg sink.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.DSN
	if path == "" {
		dir := cfg.Path
		if dir == "" {
			dir = "."
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path = filepath.Join(dir, FileName)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	if err := applySettings(ctx, db, params.Settings); err != nil {
		_ = db.Close()
		return err
	}

	s.Logger.Debug("connected to duckdb", slog.String("path", path))
	s.DB = db
	s.Cfg = cfg
	return nil
}

func applySettings(ctx context.Context, db *sql.DB, settings map[string]string) error {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.ReplaceAll(settings[k], "'", "''")
		if _, err := db.ExecContext(ctx, fmt.Sprintf("SET %s = '%s'", sink.QuoteIdent(k), v)); err != nil {
			return fmt.Errorf("failed to apply setting %s: %w", k, err)
		}
	}
	return nil
}

var _ sink.Sink = (*Sink)(nil)
