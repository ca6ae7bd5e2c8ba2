package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"dompet/internal/config"
	"dompet/internal/core"
	"dompet/internal/storage/memory"
)

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/dompet"})
	require.NoError(t, err)
	require.Equal(t, PostgresBackend, cfg.Type)

	_, err = FromAppConfig(&config.Config{DataBackend: "postgres"})
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.ErrorContains(t, err, "invalid backend type")

	_, err = FromAppConfig(nil)
	require.Error(t, err)
}

func TestOpenMemory(t *testing.T) {
	b, err := Open(context.Background(), Config{Type: MemoryBackend}, nil)
	require.NoError(t, err)
	require.IsType(t, &memory.Store{}, b)
	require.NoError(t, b.Close())
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	b, err := Open(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "dompet.db")}, nil)
	require.NoError(t, err)
	defer b.Close()

	saved, err := b.UpsertTarget(ctx, core.IncomeTarget{UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: 100}, Month: "2025-01"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	list, err := b.SelectTargets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
}
