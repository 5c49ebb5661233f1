// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/apstab/internal/cli/output"
	coretest "github.com/leapstack-labs/apstab/internal/testutil"
)

// Project is a temporary project directory created by SetupTestProject.
type Project struct {
	Root    string
	Grammar string
	Data    string
	Out     string
	State   string
}

// PatentFile returns an APS file with n PATN records numbered from start.
// Each patent yields one patent, one inventor and one claim row.
func PatentFile(start, n int) string {
	var b strings.Builder
	b.WriteString("HHHHHT APS1 weekly header\n")
	for i := start; i < start+n; i++ {
		fmt.Fprintf(&b, "PATN\nWKU  P%06d\nTTL  Title %d\nINVT\nNAM  Inventor %d\nCLMS\nNUM  1\nPAR  Claim of %d\n", i, i, i, i)
	}
	return b.String()
}

// SetupTestProject creates a temporary project with a grammar, an
// apstab.yaml pointing at it and two input files under data/.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	tmpDir := t.TempDir()
	p := &Project{
		Root:    tmpDir,
		Grammar: filepath.Join(tmpDir, "grammar.yaml"),
		Data:    filepath.Join(tmpDir, "data"),
		Out:     filepath.Join(tmpDir, "out"),
		State:   filepath.Join(tmpDir, ".apstab", "state.db"),
	}

	coretest.WriteFile(t, tmpDir, "grammar.yaml", coretest.PatentGrammar)
	coretest.WriteFile(t, p.Data, "pftaps19760106_wk01.txt", PatentFile(1, 2))
	coretest.WriteFile(t, p.Data, "pftaps19760113_wk02.txt", PatentFile(3, 1))

	cfg := `grammar: grammar.yaml
inputs:
  - data
output_type: csv
output_path: out
`
	coretest.WriteFile(t, tmpDir, "apstab.yaml", cfg)

	return p
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// ReadFile returns the content of path, failing the test on error.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test fixture path
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
