package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/leapstack-labs/apstab/internal/cli/testutil"
	"github.com/leapstack-labs/apstab/internal/testutil"

	_ "github.com/leapstack-labs/apstab/pkg/sinks/csv"
	_ "github.com/leapstack-labs/apstab/pkg/sinks/sqlite"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"convert", "check", "runs", "version", "completion"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "grammar", "state", "no-state", "verbose", "quiet", "log-format", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_ConvertUsesProjectConfig(t *testing.T) {
	p := clitest.SetupTestProject(t)
	t.Chdir(p.Data)

	out, errOut, err := run(t, "convert", "-o", "json", "--workers", "1", "--log-format", "json")
	require.NoError(t, err, errOut)

	var rep struct {
		RunID string `json:"run_id"`
		Files []struct {
			Status string `json:"status"`
		} `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Files, 2)
	assert.NotEmpty(t, rep.RunID)

	assert.FileExists(t, filepath.Join(p.Out, "patent.csv"), "output_path resolves against the config file")
	assert.FileExists(t, p.State)
	assert.Contains(t, errOut, `"msg":"run finished"`)
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	p := clitest.SetupTestProject(t)
	t.Chdir(p.Root)

	_, errOut, err := run(t, "convert", "-o", "json", "-t", "sqlite", "--output-path", "db", "--no-state", "-q")
	require.NoError(t, err, errOut)

	assert.FileExists(t, filepath.Join(p.Root, "db", "db.sqlite"))
	assert.NoDirExists(t, p.Out)
	assert.NoFileExists(t, p.State)
	assert.Empty(t, errOut, "quiet suppresses info logs")
}

func TestRootCmd_ExplicitConfig(t *testing.T) {
	p := clitest.SetupTestProject(t)
	t.Chdir(t.TempDir())
	alt := testutil.WriteFile(t, p.Root, "alt.yaml", "grammar: grammar.yaml\n")

	out, _, err := run(t, "--config", alt, "check", "-o", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "- **Root section:** PATN")
}

func TestRootCmd_InvalidSettings(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name      string
		args      []string
		errSubstr string
	}{
		{name: "verbose and quiet", args: []string{"check", "-v", "-q"}, errSubstr: "mutually exclusive"},
		{name: "bad output", args: []string{"check", "-o", "yaml"}, errSubstr: "invalid output"},
		{name: "no grammar", args: []string{"check"}, errSubstr: "grammar is required"},
		{name: "missing config", args: []string{"--config", "nope.yaml", "check"}, errSubstr: "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestRootCmd_VersionAndCompletion(t *testing.T) {
	t.Chdir(t.TempDir())

	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "apstab v"+Version)

	out, _, err = run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "bash completion")
}

func TestGetConfigAndRenderer(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, GetConfig(ctx))
	assert.NotNil(t, GetRenderer(ctx))
}
