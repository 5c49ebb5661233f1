// Package engine runs a grammar over many APS files and writes the rows to
// a table sink. It handles input discovery, parallel parsing, ordered
// writes and the run ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/leapstack-labs/apstab/internal/state"
	"github.com/leapstack-labs/apstab/pkg/convert"
	"github.com/leapstack-labs/apstab/pkg/grammar"
	"github.com/leapstack-labs/apstab/pkg/sink"
)

// Engine orchestrates the conversion of APS files.
type Engine struct {
	// Table sink (lazy connected)
	sink          sink.Sink
	sinkConfig    sink.Config
	sinkConnected bool
	sinkMu        sync.Mutex
	handles       map[string]sink.Handle

	interp  *convert.Interpreter
	grammar *grammar.Grammar
	store   state.Store
	runInfo state.RunInfo
	clean   bool
	workers int
	logger  *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Grammar drives the conversion.
	Grammar *grammar.Grammar
	// Convert configures the per-file interpreter. Its Logger is replaced by
	// the engine logger when nil.
	Convert convert.Options
	// Sink receives the rows. It is connected with SinkConfig on first use.
	Sink       sink.Sink
	SinkConfig sink.Config
	// Clean discards prior output of the grammar's tables before writing.
	Clean bool
	// Workers is the number of files parsed concurrently. Zero means
	// runtime.NumCPU().
	Workers int
	// Store is the run ledger. Nil disables it.
	Store state.Store
	// RunInfo is recorded with every ledger run.
	RunInfo state.RunInfo
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine. The sink is only connected when Run is called.
func New(cfg Config) (*Engine, error) {
	if cfg.Grammar == nil {
		return nil, errors.New("engine requires a grammar")
	}
	if cfg.Sink == nil {
		return nil, errors.New("engine requires a sink")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	opts := cfg.Convert
	if opts.Logger == nil {
		opts.Logger = logger
	}

	logger.Debug("initializing engine", "output_type", cfg.SinkConfig.Type, "workers", workers)

	return &Engine{
		sink:       cfg.Sink,
		sinkConfig: cfg.SinkConfig,
		interp:     convert.New(cfg.Grammar, opts),
		grammar:    cfg.Grammar,
		store:      cfg.Store,
		runInfo:    cfg.RunInfo,
		clean:      cfg.Clean,
		workers:    workers,
		logger:     logger,
	}, nil
}

// ensureSinkReady connects the sink, applies clean and opens every table
// of the grammar.
func (e *Engine) ensureSinkReady(ctx context.Context) error {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()

	if e.sinkConnected {
		return nil
	}

	e.logger.Debug("connecting to output", "output_type", e.sinkConfig.Type)
	if err := e.sink.Connect(ctx, e.sinkConfig); err != nil {
		return fmt.Errorf("failed to connect to output: %w", err)
	}

	tables := e.grammar.SortedEntities()
	if e.clean {
		if err := e.sink.Clean(ctx, tables); err != nil {
			return fmt.Errorf("failed to clean output: %w", err)
		}
		e.logger.Info("cleaned output", "tables", len(tables))
	} else {
		existing, err := e.sink.Existing(ctx, tables)
		if err != nil {
			return fmt.Errorf("failed to inspect output: %w", err)
		}
		if len(existing) > 0 {
			e.logger.Warn("output already exists, appending rows; use --clean to start over", "tables", existing)
		}
	}

	e.handles = make(map[string]sink.Handle, len(tables))
	for _, table := range tables {
		h, err := e.sink.Open(ctx, table, e.grammar.Columns(table))
		if err != nil {
			return fmt.Errorf("failed to open table %s: %w", table, err)
		}
		e.handles[table] = h
	}

	e.sinkConnected = true
	return nil
}

// Close releases the sink and the ledger.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if err := e.sink.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Grammar returns the engine grammar.
func (e *Engine) Grammar() *grammar.Grammar { return e.grammar }

// Workers returns the parse concurrency.
func (e *Engine) Workers() int { return e.workers }
