// Package postgres writes tables into a PostgreSQL database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-viper/mapstructure/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Params holds Postgres-specific configuration.
type Params struct {
	// Schema receives the tables; empty uses the connection's search_path.
	Schema string `mapstructure:"schema"`
}

// Sink implements sink.Sink for PostgreSQL.
type Sink struct {
	sink.BaseSQLSink
	params Params
}

// New creates a PostgreSQL sink. If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sink{
		BaseSQLSink: sink.BaseSQLSink{
			Logger:      logger,
			Placeholder: sq.Dollar,
			Catalog:     catalog,
		},
	}
}

func catalog(table string) sq.SelectBuilder {
	return sink.InformationSchema(table).Where("table_schema = current_schema()")
}

// Connect opens the database named by cfg.DSN (URL or key=value form).
func (s *Sink) Connect(ctx context.Context, cfg sink.Config) error {
	if cfg.DSN == "" {
		return errors.New("postgres output requires a dsn")
	}
	if err := mapstructure.Decode(cfg.Params, &s.params); err != nil {
		return fmt.Errorf("invalid postgres params: %w", err)
	}

	connCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}
	for k, v := range cfg.Options {
		connCfg.RuntimeParams[k] = v
	}
	if s.params.Schema != "" {
		connCfg.RuntimeParams["search_path"] = s.params.Schema
	}

	s.Logger.Debug("connecting to postgres", slog.String("host", connCfg.Host), slog.String("database", connCfg.Database))

	db := stdlib.OpenDB(*connCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
	}

	s.DB = db
	s.Cfg = cfg
	return nil
}

var _ sink.Sink = (*Sink)(nil)
