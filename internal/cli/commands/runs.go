package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/leapstack-labs/apstab/internal/cli/output"
	"github.com/leapstack-labs/apstab/internal/state"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command and its show subcommand.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded conversion runs",
		Long: `List the conversion runs recorded in the state database, newest first.

Use "apstab runs show <id>" to see the outcome of every file of a run.`,
		Example: `  apstab runs
  apstab runs --limit 5 --output json
  apstab runs show 3f1c2a9e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")

	cmd.AddCommand(newRunsShowCommand())
	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show the files of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd, args[0])
		},
	}
}

// openLedger opens the state database for reading. It fails instead of
// creating an empty database when none exists yet.
func openLedger(cmd *cobra.Command, cmdCtx *CommandContext) (*state.SQLiteStore, error) {
	cfg := cmdCtx.Cfg
	if cfg.NoState {
		return nil, errors.New("run history is disabled by no_state")
	}
	if _, err := os.Stat(cfg.StatePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no state database at %s\nHint: run apstab convert first", cfg.StatePath)
		}
		return nil, fmt.Errorf("failed to access state database: %w", err)
	}
	return openStore(cmd, cfg, cmdCtx.Logger)
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := openLedger(cmd, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}

	r.Header(1, fmt.Sprintf("Runs (%d)", len(runs)))
	rows := make([][]any, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []any{
			run.ID,
			run.StartedAt.Local().Format(time.DateTime),
			runDuration(run),
			runStatusCell(r, run.Status),
			run.OutputType,
			run.OutputPath,
			run.Error,
		})
	}
	r.Table([]string{"ID", "Started", "Duration", "Status", "Output", "Path", "Error"}, rows)
	return nil
}

func runRunsShow(cmd *cobra.Command, id string) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	store, err := openLedger(cmd, cmdCtx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	files, err := store.ListFiles(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if files == nil {
			files = []*state.FileRun{}
		}
		return r.JSON(struct {
			*state.Run
			Files []*state.FileRun `json:"files"`
		}{run, files})
	}

	r.Header(1, "Run "+run.ID)
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	r.KeyValue("Duration", runDuration(run))
	r.KeyValue("Grammar", run.GrammarPath)
	r.KeyValue("Output", run.OutputType+" "+run.OutputPath)
	if run.Error != "" {
		r.KeyValue("Error", run.Error)
	}
	r.Println()

	rows := make([][]any, 0, len(files))
	for _, f := range files {
		rows = append(rows, []any{
			f.Path,
			statusCell(r, f.Status),
			f.Patents, f.Suppressed, f.MissingKeys, f.Rows, f.SkippedLines,
			f.Duration.String(),
			f.Error,
		})
	}
	r.Table([]string{"File", "Status", "Patents", "Suppressed", "Missing keys", "Rows", "Skipped lines", "Duration", "Error"}, rows)
	return nil
}

func runDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

func runStatusCell(r *output.Renderer, status state.RunStatus) string {
	if r.EffectiveMode() != output.ModeText {
		return string(status)
	}
	st := r.Styles()
	switch status {
	case state.RunStatusCompleted:
		return st.Success.Render(string(status))
	case state.RunStatusFailed:
		return st.Error.Render(string(status))
	case state.RunStatusCancelled:
		return st.Warning.Render(string(status))
	default:
		return st.Muted.Render(string(status))
	}
}
