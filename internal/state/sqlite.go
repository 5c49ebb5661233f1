package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Memory is the path of an in-memory ledger.
const Memory = ":memory:"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// OpenSQLite opens the ledger at path and applies pending migrations.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(ctx, path); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database, creating parent
// directories as needed. Use Memory for an in-memory database.
func (s *SQLiteStore) Open(ctx context.Context, path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != Memory {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", slog.String("path", path))
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

func generateID() string {
	return uuid.New().String()
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) (time.Time, error) { return time.Parse(timeLayout, v) }

// --- Run operations ---

// CreateRun records the start of a run.
func (s *SQLiteStore) CreateRun(ctx context.Context, info RunInfo) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run := &Run{
		ID:          generateID(),
		StartedAt:   time.Now().UTC(),
		Status:      RunStatusRunning,
		OutputType:  info.OutputType,
		OutputPath:  info.OutputPath,
		GrammarPath: info.GrammarPath,
	}
	s.logger.Debug("creating run", slog.String("id", run.ID))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status, output_type, output_path, grammar_path) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, formatTime(run.StartedAt), string(run.Status), run.OutputType, run.OutputPath, run.GrammarPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpened
	}

	var errVal sql.NullString
	if errMsg != "" {
		errVal = sql.NullString{String: errMsg, Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), formatTime(time.Now()), errVal, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

const runColumns = `id, started_at, completed_at, status, output_type, output_path, grammar_path, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		startedAt   string
		completedAt sql.NullString
		status      string
		errMsg      sql.NullString
	)
	if err := row.Scan(&run.ID, &startedAt, &completedAt, &status, &run.OutputType, &run.OutputPath, &run.GrammarPath, &errMsg); err != nil {
		return nil, err
	}
	t, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at for run %s: %w", run.ID, err)
	}
	run.StartedAt = t
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid completed_at for run %s: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}
	run.Status = RunStatus(status)
	run.Error = errMsg.String
	return &run, nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first. A limit below one
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit < 1 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// --- File operations ---

// RecordFile stores the outcome of one file. An empty ID is generated.
func (s *SQLiteStore) RecordFile(ctx context.Context, f *FileRun) error {
	if s.db == nil {
		return errNotOpened
	}
	if f.ID == "" {
		f.ID = generateID()
	}

	var errVal sql.NullString
	if f.Error != "" {
		errVal = sql.NullString{String: f.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_runs (id, run_id, seq, path, status, patents, suppressed, missing_keys, rows, skipped_lines, duration_ms, error)
		VALUES (?, ?, (SELECT COUNT(*) FROM file_runs WHERE run_id = ?), ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.RunID, f.RunID, f.Path, string(f.Status),
		f.Patents, f.Suppressed, f.MissingKeys, f.Rows, f.SkippedLines,
		f.Duration.Milliseconds(), errVal,
	)
	if err != nil {
		return fmt.Errorf("failed to record file %s: %w", f.Path, err)
	}
	return nil
}

// ListFiles returns the files of a run in the order they were recorded.
func (s *SQLiteStore) ListFiles(ctx context.Context, runID string) ([]*FileRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, path, status, patents, suppressed, missing_keys, rows, skipped_lines, duration_ms, error
		FROM file_runs WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*FileRun
	for rows.Next() {
		var (
			f        FileRun
			status   string
			duration int64
			errMsg   sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.Path, &status, &f.Patents, &f.Suppressed,
			&f.MissingKeys, &f.Rows, &f.SkippedLines, &duration, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Status = FileStatus(status)
		f.Duration = time.Duration(duration) * time.Millisecond
		f.Error = errMsg.String
		files = append(files, &f)
	}
	return files, rows.Err()
}
