package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/apstab/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := New(nil)
	require.NoError(t, s.Connect(ctx, sink.Config{Type: "sqlite", Path: dir}))

	h, err := s.Open(ctx, "patent", []string{"id", "title"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "047029323", "title": "Widget"}))
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"title": "No key"}))
	require.NoError(t, s.Close())

	db, err := sql.Open("sqlite", filepath.Join(dir, FileName))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM patent`).Scan(&n))
	assert.Equal(t, 2, n)

	var id sql.NullString
	require.NoError(t, db.QueryRow(`SELECT id FROM patent WHERE title = 'No key'`).Scan(&id))
	assert.False(t, id.Valid, "absent id is NULL")
}

func TestSink_ReopenAddsColumnsAndAppends(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := New(nil)
	require.NoError(t, s.Connect(ctx, sink.Config{Path: dir}))
	h, err := s.Open(ctx, "claim", []string{"id", "text"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "1_1", "text": "a"}))
	require.NoError(t, s.Close())

	s = New(nil)
	require.NoError(t, s.Connect(ctx, sink.Config{Path: dir}))
	existing, err := s.Existing(ctx, []string{"claim", "patent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"claim"}, existing)

	h, err = s.Open(ctx, "claim", []string{"id", "number", "text"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "1_2", "number": "2", "text": "b"}))
	require.NoError(t, s.Flush(ctx))

	var n int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM claim`).Scan(&n))
	assert.Equal(t, 2, n)

	require.NoError(t, s.Clean(ctx, []string{"claim"}))
	existing, err = s.Existing(ctx, []string{"claim"})
	require.NoError(t, err)
	assert.Empty(t, existing)
	require.NoError(t, s.Close())
}

func TestRegistered(t *testing.T) {
	assert.True(t, sink.IsRegistered("sqlite"))
}
