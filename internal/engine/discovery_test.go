package engine

import (
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/apstab/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.txt", "a.TXT", "notes.csv", "sub/c.txt", "sub/deeper/d.Txt", "other/e.txt"} {
		testutil.WriteFile(t, dir, name, "PATN\n")
	}
	explicit := testutil.WriteFile(t, dir, "explicit.dat", "PATN\n")
	p := func(name string) string { return filepath.Join(dir, name) }

	tests := []struct {
		name   string
		inputs []string
		opts   DiscoveryOptions
		want   []string
	}{
		{
			name:   "directory lists txt files",
			inputs: []string{dir},
			want:   []string{p("a.TXT"), p("b.txt")},
		},
		{
			name:   "recurse",
			inputs: []string{dir},
			opts:   DiscoveryOptions{Recurse: true},
			want:   []string{p("a.TXT"), p("b.txt"), p("other/e.txt"), p("sub/c.txt"), p("sub/deeper/d.Txt")},
		},
		{
			name:   "explicit file keeps any extension",
			inputs: []string{explicit},
			want:   []string{explicit},
		},
		{
			name:   "glob",
			inputs: []string{filepath.Join(dir, "*", "*.txt")},
			want:   []string{p("other/e.txt"), p("sub/c.txt")},
		},
		{
			name:   "glob matching a directory",
			inputs: []string{filepath.Join(dir, "su?")},
			want:   []string{p("sub/c.txt")},
		},
		{
			name:   "duplicates keep the first occurrence",
			inputs: []string{p("b.txt"), dir, p("b.txt")},
			want:   []string{p("b.txt"), p("a.TXT")},
		},
		{
			name:   "input order is preserved",
			inputs: []string{p("sub"), p("a.TXT")},
			want:   []string{p("sub/c.txt"), p("a.TXT")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Discover(tt.inputs, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscover_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Discover([]string{filepath.Join(dir, "missing.txt")}, DiscoveryOptions{})
	assert.ErrorContains(t, err, "input not found")

	_, err = Discover([]string{filepath.Join(dir, "*.txt")}, DiscoveryOptions{})
	assert.ErrorContains(t, err, "no files match input pattern")

	_, err = Discover([]string{filepath.Join(dir, "[")}, DiscoveryOptions{})
	assert.ErrorContains(t, err, "invalid input pattern")
}

func TestDiscover_EmptyDirectory(t *testing.T) {
	got, err := Discover([]string{t.TempDir()}, DiscoveryOptions{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIsInputFile(t *testing.T) {
	assert.True(t, IsInputFile("pftaps19871103_wk44.txt"))
	assert.True(t, IsInputFile("PFTAPS.TXT"))
	assert.False(t, IsInputFile("patent.csv"))
	assert.False(t, IsInputFile("txt"))
}
