package csv

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/apstab/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connect(t *testing.T, dir string) *Sink {
	t.Helper()
	s := New(nil)
	require.NoError(t, s.Connect(context.Background(), sink.Config{Type: "csv", Path: dir}))
	return s
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	return string(b)
}

func TestSink_WriteWithHeader(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	ctx := context.Background()
	s := connect(t, dir)

	h, err := s.Open(ctx, "inventor", []string{"id", "patent_id", "name"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "1_1", "patent_id": "1", "name": "Smith, John"}))
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "1_2", "patent_id": "1"}))
	require.NoError(t, s.Close())

	want := "id,patent_id,name\n1_1,1,\"Smith, John\"\n1_2,1,\n"
	assert.Equal(t, want, readFile(t, filepath.Join(dir, "inventor.csv")))
}

func TestSink_AppendsWithoutHeader(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cols := []string{"id", "title"}

	for _, id := range []string{"1", "2"} {
		s := connect(t, dir)
		existing, err := s.Existing(ctx, []string{"patent"})
		require.NoError(t, err)
		if id == "1" {
			assert.Empty(t, existing)
		} else {
			assert.Equal(t, []string{"patent"}, existing)
		}
		h, err := s.Open(ctx, "patent", cols)
		require.NoError(t, err)
		require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": id, "title": "T" + id}))
		require.NoError(t, s.Close())
	}

	assert.Equal(t, "id,title\n1,T1\n2,T2\n", readFile(t, filepath.Join(dir, "patent.csv")))
}

func TestSink_HeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patent.csv"), []byte("id,other\n"), 0o600))

	s := connect(t, dir)
	_, err := s.Open(context.Background(), "patent", []string{"id", "title"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rerun with --clean")
}

func TestSink_Clean(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	path := filepath.Join(dir, "claim.csv")
	require.NoError(t, os.WriteFile(path, []byte("id\nold\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.txt"), []byte("x"), 0o600))

	s := connect(t, dir)
	require.NoError(t, s.Clean(ctx, []string{"claim", "never_written"}))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(filepath.Join(dir, "keep.txt"))
	assert.NoError(t, err, "clean only touches table files")

	h, err := s.Open(ctx, "claim", []string{"id"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "new"}))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, "id\nnew\n", readFile(t, path))
	require.NoError(t, s.Close())
}

func TestSink_UnknownColumn(t *testing.T) {
	ctx := context.Background()
	s := connect(t, t.TempDir())
	defer func() { _ = s.Close() }()

	h, err := s.Open(ctx, "patent", []string{"id"})
	require.NoError(t, err)

	err = s.WriteRow(ctx, h, sink.Row{"id": "1", "nope": "x"})
	var werr *sink.WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, "patent", werr.Table)
}

func TestSink_OpenTwice(t *testing.T) {
	ctx := context.Background()
	s := connect(t, t.TempDir())
	defer func() { _ = s.Close() }()

	h1, err := s.Open(ctx, "patent", []string{"id"})
	require.NoError(t, err)
	h2, err := s.Open(ctx, "patent", []string{"id"})
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	_, err = s.Open(ctx, "patent", []string{"id", "x"})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.True(t, sink.IsRegistered("csv"))
}
