package duckdb

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/apstab/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSink_Connect(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(t *testing.T) sink.Config
		verify func(t *testing.T, cfg sink.Config)
	}{
		{
			name: "in-memory",
			cfg: func(_ *testing.T) sink.Config {
				return sink.Config{DSN: ":memory:"}
			},
		},
		{
			name: "output directory",
			cfg: func(t *testing.T) sink.Config {
				return sink.Config{Path: filepath.Join(t.TempDir(), "out")}
			},
			verify: func(t *testing.T, cfg sink.Config) {
				_, err := os.Stat(filepath.Join(cfg.Path, FileName))
				assert.False(t, os.IsNotExist(err), "database file was not created")
			},
		},
		{
			name: "with settings",
			cfg: func(_ *testing.T) sink.Config {
				return sink.Config{
					DSN:    ":memory:",
					Params: map[string]any{"settings": map[string]any{"threads": "2"}},
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil)
			cfg := tt.cfg(t)
			require.NoError(t, s.Connect(context.Background(), cfg))
			defer func() { _ = s.Close() }()

			if tt.verify != nil {
				tt.verify(t, cfg)
			}
		})
	}
}

func TestSink_WriteAndAlter(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	require.NoError(t, s.Connect(ctx, sink.Config{DSN: ":memory:"}))
	defer func() { _ = s.Close() }()

	h, err := s.Open(ctx, "citation", []string{"id", "patent_id", "number"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "1_1", "patent_id": "1", "number": "123"}))
	require.NoError(t, s.Flush(ctx))

	h, err = s.Open(ctx, "citation", []string{"id", "patent_id", "number", "kind"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "1_2", "patent_id": "1", "kind": "us"}))
	require.NoError(t, s.Flush(ctx))

	var n int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM citation WHERE kind IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)

	existing, err := s.Existing(ctx, []string{"citation", "patent"})
	require.NoError(t, err)
	assert.Equal(t, []string{"citation"}, existing)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name: "settings",
			input: map[string]any{
				"settings": map[string]any{
					"memory_limit": "4GB",
					"threads":      "4",
				},
			},
			want: &Params{Settings: map[string]string{"memory_limit": "4GB", "threads": "4"}},
		},
		{
			name:    "wrong type",
			input:   map[string]any{"settings": []any{"x"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParams(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistered(t *testing.T) {
	assert.True(t, sink.IsRegistered("duckdb"))
}
