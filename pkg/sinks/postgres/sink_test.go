package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leapstack-labs/apstab/pkg/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestSink_ConnectErrors(t *testing.T) {
	tests := []struct {
		name      string
		cfg       sink.Config
		errSubstr string
	}{
		{
			name:      "missing dsn",
			cfg:       sink.Config{Type: "postgres"},
			errSubstr: "requires a dsn",
		},
		{
			name:      "bad params",
			cfg:       sink.Config{DSN: "postgres://localhost/x", Params: map[string]any{"schema": []int{1}}},
			errSubstr: "invalid postgres params",
		},
		{
			name:      "bad dsn",
			cfg:       sink.Config{DSN: "postgres://%zz"},
			errSubstr: "invalid postgres dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(nil).Connect(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "apstab",
				"POSTGRES_PASSWORD": "apstab",
				"POSTGRES_DB":       "apstab",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://apstab:apstab@%s:%s/apstab?sslmode=disable", host, port.Port())
}

func TestSink_Integration(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	s := New(nil)
	require.NoError(t, s.Connect(ctx, sink.Config{Type: "postgres", DSN: dsn}))
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Clean(ctx, []string{"patent"}))
	h, err := s.Open(ctx, "patent", []string{"id", "title"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "047029323", "title": "Widget"}))
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"title": "No key"}))
	require.NoError(t, s.Flush(ctx))

	existing, err := s.Existing(ctx, []string{"patent", "claim"})
	require.NoError(t, err)
	assert.Equal(t, []string{"patent"}, existing)

	h, err = s.Open(ctx, "patent", []string{"id", "title", "source_file"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, h, sink.Row{"id": "2", "source_file": "a.txt"}))
	require.NoError(t, s.Flush(ctx))

	var n int
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM patent WHERE id IS NULL`).Scan(&n))
	assert.Equal(t, 1, n)
	require.NoError(t, s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM patent WHERE source_file = $1`, "a.txt").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRegistered(t *testing.T) {
	assert.True(t, sink.IsRegistered("postgres"))
}
