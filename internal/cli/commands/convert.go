package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/apstab/internal/cli/output"
	"github.com/leapstack-labs/apstab/internal/engine"
	"github.com/leapstack-labs/apstab/internal/state"
	"github.com/leapstack-labs/apstab/pkg/aps"
	"github.com/leapstack-labs/apstab/pkg/convert"
	"github.com/leapstack-labs/apstab/pkg/sink"
	"github.com/leapstack-labs/apstab/pkg/sinks/memory"
	"github.com/spf13/cobra"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [inputs...]",
		Short: "Convert APS files into tables",
		Long: `Convert APS text files into relational tables described by a grammar.

Inputs are files, directories of *.txt files or glob patterns. Arguments
replace the inputs of apstab.yaml. Files are parsed in parallel and written
in input order, so output is identical for any --workers value.

A file that cannot be read or written is reported and the remaining files
are still converted. The command exits non-zero when any file failed.`,
		Example: `  # Convert one weekly file to CSV in ./out
  apstab convert -g patent.yaml --output-path out pftaps19760106_wk01.txt

  # Convert a directory tree into SQLite, replacing earlier output
  apstab convert -g patent.yaml -t sqlite --output-path out --clean -r data/

  # Parse without writing and print the row counts
  apstab convert -g patent.yaml --dry-run data/*.txt

  # Load into Postgres
  apstab convert -g patent.yaml -t postgres --dsn 'postgres://localhost/patents' data/`,
		RunE: runConvert,
	}

	f := cmd.Flags()
	f.String("output-path", "", "Output directory for csv, sqlite and duckdb")
	f.StringP("output-type", "t", "", "Output type ("+joinNames(sink.List())+")")
	f.String("dsn", "", "Connection string for postgres")
	f.Bool("clean", false, "Remove earlier output of the grammar's tables first")
	f.Bool("dry-run", false, "Parse without writing any output")
	f.String("joiner", "", "Default joiner of <fieldname> rules (default \"|#|\")")
	f.IntP("workers", "j", 0, "Files parsed concurrently (default: number of CPUs)")
	f.String("ignore-file", "", "YAML list of patents to skip, by file name")
	f.Bool("no-default-ignores", false, "Do not apply the built-in USPTO ignore list")
	f.String("encoding", "", "Input encoding: latin1 or utf-8 (default latin1)")
	f.Bool("continuation", false, "Append indented continuation lines to the previous field")
	f.Bool("skip-unknown-sections", false, "Ignore fields of unconfigured four-letter sections")
	f.BoolP("recurse", "r", false, "Descend into subdirectories of input directories")

	_ = cmd.RegisterFlagCompletionFunc("output-type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return sink.List(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("encoding", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{string(aps.Latin1), string(aps.UTF8)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	cmdCtx := NewCommandContext(cmd)
	cfg := cmdCtx.Cfg
	logger := cmdCtx.Logger
	r := cmdCtx.Renderer

	if err := cfg.ValidateConvert(); err != nil {
		return err
	}

	inputs := cfg.Inputs
	if len(args) > 0 {
		inputs = args
	}
	if len(inputs) == 0 {
		return errors.New("no inputs given\nHint: pass files or directories, or set inputs in apstab.yaml")
	}

	g, err := loadGrammar(cfg)
	if err != nil {
		return err
	}
	ignoreSet, err := loadIgnoreSet(cfg)
	if err != nil {
		return err
	}
	encoding, err := aps.ParseEncoding(cfg.Encoding)
	if err != nil {
		return err
	}

	files, err := engine.Discover(inputs, engine.DiscoveryOptions{Recurse: cfg.Recurse})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		r.Warning("no input files found")
		return nil
	}

	sinkCfg := sink.Config{
		Type:    cfg.OutputType,
		Path:    cfg.OutputPath,
		DSN:     cfg.DSN,
		Options: cfg.OutputOptions,
		Params:  cfg.OutputParams,
	}
	var snk sink.Sink
	var dryRun *memory.Sink
	if cfg.DryRun {
		dryRun = memory.New(logger)
		snk = dryRun
		sinkCfg = sink.Config{Type: memory.Name}
	} else {
		snk, err = sink.New(sinkCfg, logger)
		if err != nil {
			return err
		}
	}

	var store state.Store
	if !cfg.NoState && !cfg.DryRun {
		s, err := openStore(cmd, cfg, logger)
		if err != nil {
			_ = snk.Close()
			return err
		}
		store = s
	}

	eng, err := engine.New(engine.Config{
		Grammar: g,
		Convert: convert.Options{
			Ignore:              ignoreSet,
			Encoding:            encoding,
			Continuation:        cfg.Continuation,
			SkipUnknownSections: cfg.SkipUnknownSections,
		},
		Sink:       snk,
		SinkConfig: sinkCfg,
		Clean:      cfg.Clean,
		Workers:    cfg.Workers,
		Store:      store,
		RunInfo: state.RunInfo{
			OutputType:  sinkCfg.Type,
			OutputPath:  outputLocation(sinkCfg),
			GrammarPath: cfg.Grammar,
		},
		Logger: logger,
	})
	if err != nil {
		_ = snk.Close()
		if store != nil {
			_ = store.Close()
		}
		return err
	}
	defer func() {
		if cerr := eng.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()

	summary, runErr := eng.Run(cmd.Context(), files)
	if summary != nil && (runErr == nil || len(summary.Files) > 0) {
		if rerr := renderSummary(r, summary, dryRun); rerr != nil {
			return rerr
		}
	}
	if runErr != nil {
		return runErr
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d of %d file(s) failed", summary.Failed, len(summary.Files))
	}
	return nil
}

// outputLocation is what the ledger records as the output path. The DSN is
// left out so that credentials never reach the state database.
func outputLocation(cfg sink.Config) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	if cfg.DSN != "" {
		return "(dsn)"
	}
	return ""
}

type fileReport struct {
	Path         string `json:"path"`
	Status       string `json:"status"`
	Patents      int    `json:"patents"`
	Suppressed   int    `json:"suppressed"`
	MissingKeys  int    `json:"missing_keys"`
	Rows         int    `json:"rows"`
	SkippedLines int    `json:"skipped_lines"`
	DurationMS   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

type convertReport struct {
	RunID      string         `json:"run_id,omitempty"`
	DryRun     bool           `json:"dry_run"`
	Files      []fileReport   `json:"files"`
	Total      convert.Stats  `json:"total"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	DurationMS int64          `json:"duration_ms"`
	Tables     map[string]int `json:"tables,omitempty"`
}

func newConvertReport(s *engine.Summary, dryRun *memory.Sink) convertReport {
	rep := convertReport{
		RunID:      s.RunID,
		DryRun:     dryRun != nil,
		Files:      make([]fileReport, 0, len(s.Files)),
		Total:      s.Total,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		DurationMS: s.Duration.Milliseconds(),
	}
	for _, f := range s.Files {
		fr := fileReport{
			Path:         f.Path,
			Status:       string(f.Status),
			Patents:      f.Stats.Patents,
			Suppressed:   f.Stats.Suppressed,
			MissingKeys:  f.Stats.MissingKeys,
			Rows:         f.Stats.Rows,
			SkippedLines: f.Stats.SkippedLines,
			DurationMS:   f.Duration.Milliseconds(),
		}
		if f.Err != nil {
			fr.Error = f.Err.Error()
		}
		rep.Files = append(rep.Files, fr)
	}
	if dryRun != nil {
		rep.Tables = dryRun.Counts()
	}
	return rep
}

func renderSummary(r *output.Renderer, s *engine.Summary, dryRun *memory.Sink) error {
	rep := newConvertReport(s, dryRun)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rep)
	}

	r.Header(1, fmt.Sprintf("Converted %d file(s)", len(rep.Files)))

	rows := make([][]any, 0, len(rep.Files))
	for _, f := range rep.Files {
		rows = append(rows, []any{
			f.Path,
			statusCell(r, state.FileStatus(f.Status)),
			f.Patents, f.Suppressed, f.MissingKeys, f.Rows, f.SkippedLines,
			(time.Duration(f.DurationMS) * time.Millisecond).String(),
		})
	}
	r.Table([]string{"File", "Status", "Patents", "Suppressed", "Missing keys", "Rows", "Skipped lines", "Duration"}, rows)
	r.Println()

	if rep.RunID != "" {
		r.KeyValue("Run", rep.RunID)
	}
	r.KeyValue("Patents", strconv.Itoa(rep.Total.Patents))
	r.KeyValue("Rows", strconv.Itoa(rep.Total.Rows))
	r.KeyValue("Duration", s.Duration.Round(time.Millisecond).String())

	if dryRun != nil {
		r.Println()
		r.Header(2, "Dry run row counts")
		tables := make([][]any, 0, len(rep.Tables))
		for _, name := range sortedKeys(rep.Tables) {
			tables = append(tables, []any{name, rep.Tables[name]})
		}
		r.Table([]string{"Table", "Rows"}, tables)
	}

	for _, f := range rep.Files {
		if f.Error != "" {
			r.Error(f.Path + ": " + f.Error)
		}
	}
	return nil
}

func statusCell(r *output.Renderer, status state.FileStatus) string {
	if r.EffectiveMode() != output.ModeText {
		return string(status)
	}
	st := r.Styles()
	switch status {
	case state.FileStatusSuccess:
		return st.StatusSuccess.String() + " " + string(status)
	case state.FileStatusFailed:
		return st.StatusFailed.String() + " " + string(status)
	default:
		return st.StatusSkipped.String() + " " + string(status)
	}
}
