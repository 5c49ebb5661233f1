package commands

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/leapstack-labs/apstab/internal/cli/config"
	"github.com/leapstack-labs/apstab/internal/cli/output"
	"github.com/leapstack-labs/apstab/internal/state"
	"github.com/leapstack-labs/apstab/pkg/grammar"
	"github.com/leapstack-labs/apstab/pkg/ignore"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the config, logger and renderer the root
// command stored on the command context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	mode := output.Mode(cfg.OutputFormat)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}
}

// loadGrammar loads the configured grammar.
func loadGrammar(cfg *config.Config) (*grammar.Grammar, error) {
	if err := cfg.ValidateGrammar(); err != nil {
		return nil, err
	}
	g, err := grammar.LoadFile(cfg.Grammar, grammar.Options{DefaultJoiner: cfg.Joiner})
	if err != nil {
		return nil, fmt.Errorf("failed to load grammar: %w", err)
	}
	return g, nil
}

// loadIgnoreSet combines the built-in list and the configured ignore file.
func loadIgnoreSet(cfg *config.Config) (*ignore.Set, error) {
	var sets []*ignore.Set
	if cfg.DefaultIgnores {
		sets = append(sets, ignore.USPTO())
	}
	if cfg.IgnoreFile != "" {
		s, err := ignore.LoadFile(cfg.IgnoreFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load ignore file: %w", err)
		}
		sets = append(sets, s)
	}
	return ignore.Merge(sets...), nil
}

// openStore opens the run ledger at the configured state path.
func openStore(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	store, err := state.OpenSQLite(cmd.Context(), cfg.StatePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	return store, nil
}

func joinNames(names []string) string { return strings.Join(names, ", ") }

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}
