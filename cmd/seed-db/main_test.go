package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRun_DryRunEmbedded(t *testing.T) {
	require.NoError(t, run(context.Background(), zap.NewNop(), "", "", 1, true))
}

func TestRun_DryRunInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"p1","price":"-1","status":"available"}]`), 0o600))

	require.Error(t, run(context.Background(), zap.NewNop(), "", path, 1, true))
}

func unsetDatabaseEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "INTAKE_STORAGE_DATABASE_URL"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestApp_RequiresDatabaseURL(t *testing.T) {
	unsetDatabaseEnv(t)

	err := newApp(zap.NewNop()).Run([]string{"seed-db"})
	require.ErrorIs(t, err, errNoDatabaseURL)
}

func TestApp_DryRunWithoutDatabaseURL(t *testing.T) {
	unsetDatabaseEnv(t)

	err := newApp(zap.NewNop()).Run([]string{"seed-db", "--dry-run"})
	require.NoError(t, err)
}
