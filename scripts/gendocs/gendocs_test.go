package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	for _, name := range []string{"index.md", "convert.md", "check.md", "runs.md", "runs-show.md", "version.md"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	convert, err := os.ReadFile(filepath.Join(dir, "convert.md"))
	require.NoError(t, err)
	assert.Contains(t, string(convert), generatedHeader)
	assert.Contains(t, string(convert), "`--output-type`")
	assert.Contains(t, string(convert), "## Global Options")

	runs, err := os.ReadFile(filepath.Join(dir, "runs.md"))
	require.NoError(t, err)
	assert.Contains(t, string(runs), "## Subcommands")
	assert.Contains(t, string(runs), "(/cli/runs-show)")
}

func TestFlagConfigKey(t *testing.T) {
	tests := []struct {
		flag string
		want string
	}{
		{flag: "output-type", want: "`output_type`"},
		{flag: "state", want: "`state_path`"},
		{flag: "no-default-ignores", want: "`default_ignores` (inverted)"},
		{flag: "config", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			assert.Equal(t, tt.want, flagConfigKey(tt.flag))
		})
	}
}

func TestGenerateSchemaDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateSchemaDocs(dir))

	data, err := os.ReadFile(filepath.Join(dir, "configuration.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "`skip_unknown_sections`")
	assert.Contains(t, string(data), "- `sqlite`")
}

func TestMarkdownWriter_Table(t *testing.T) {
	w := NewMarkdownWriter()
	w.Table([]string{"A", "B"}, [][]string{{"x|y", "z"}})
	assert.Equal(t, "| A | B |\n| --- | --- |\n| x\\|y | z |\n\n", string(w.Bytes()))
}

func TestCleanExample(t *testing.T) {
	assert.Equal(t, "a\n  b", cleanExample("    a\n      b\n"))
	assert.Equal(t, "Read files", cleanDescription("Read\n  files."))
}
