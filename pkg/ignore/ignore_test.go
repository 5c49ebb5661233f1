package ignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_Contains(t *testing.T) {
	s := New()
	s.Add("a.txt", "1", "2")
	s.Add("a.txt", "3")
	s.Add("b.txt", "1")

	assert.True(t, s.Contains("a.txt", "1"))
	assert.True(t, s.Contains("a.txt", "3"))
	assert.True(t, s.Contains("b.txt", "1"))
	assert.False(t, s.Contains("b.txt", "2"))
	assert.False(t, s.Contains("c.txt", "1"))
	assert.False(t, s.Contains("a.txt", "1 "), "keys compare verbatim")
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, []string{"a.txt", "b.txt"}, s.Files())
	assert.Equal(t, []string{"1", "2", "3"}, s.Keys("a.txt"))
}

func TestSet_NilAndZero(t *testing.T) {
	var nilSet *Set
	assert.False(t, nilSet.Contains("a.txt", "1"))
	assert.Equal(t, 0, nilSet.Len())
	assert.Nil(t, nilSet.Files())

	var zero Set
	zero.Add("a.txt", "1")
	assert.True(t, zero.Contains("a.txt", "1"))
}

func TestLoad(t *testing.T) {
	src := `
pftaps19871103_wk44.txt:
  - "047029323"
  - "047029382"
other.txt: ["X1"]
`
	s, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Contains("other.txt", "X1"))
	assert.True(t, s.Contains("pftaps19871103_wk44.txt", "047029382"))
}

func TestLoad_Empty(t *testing.T) {
	s, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(strings.NewReader("- just\n- a list\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid ignore list")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ignore.yaml")
	require.NoError(t, os.WriteFile(path, []byte("f.txt: [\"K\"]\n"), 0o600))

	s, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, s.Contains("f.txt", "K"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open ignore list")
}

func TestMerge(t *testing.T) {
	a := New()
	a.Add("a.txt", "1")
	b := New()
	b.Add("a.txt", "2")
	b.Add("b.txt", "1")

	m := Merge(a, nil, b)
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Contains("a.txt", "2"))

	a.Add("a.txt", "9")
	assert.False(t, m.Contains("a.txt", "9"), "merge copies entries")
}

func TestUSPTO(t *testing.T) {
	s := USPTO()
	assert.Equal(t, 21, s.Len())
	assert.True(t, s.Contains("pftaps19871103_wk44.txt", "047029323"))
	assert.True(t, s.Contains("pftaps19871110_wk45.txt", "H00003670"))
	assert.False(t, s.Contains("pftaps19871103_wk44.txt", "H00003670"))
}
