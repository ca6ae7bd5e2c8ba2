package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dompet/internal/core"
	"dompet/internal/targets"
)

var _ targets.Backend = (*Repository)(nil)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "dompet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRebind(t *testing.T) {
	pg := &Repository{dialect: DialectPostgres}
	require.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &Repository{dialect: DialectSQLite}
	require.Equal(t, "a = ? AND b = ?", lite.rebind("a = ? AND b = ?"))
}

func TestUpsertTargetConflictKey(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.UpsertTarget(ctx, core.IncomeTarget{
		UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: 5_000_000}, Month: "2025-01",
	})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := repo.UpsertTarget(ctx, core.IncomeTarget{
		UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: 6_000_000}, Month: "2025-01",
	})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(6_000_000), second.Amount.Minor)

	_, err = repo.UpsertTarget(ctx, core.IncomeTarget{
		UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: 1}, Month: "2025-02",
	})
	require.NoError(t, err)
	_, err = repo.UpsertTarget(ctx, core.IncomeTarget{
		UserID: "u2", Category: "Gaji", Amount: core.Money{Minor: 1}, Month: "2025-01",
	})
	require.NoError(t, err)

	rows, err := repo.SelectTargets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, core.MonthKey("2025-01"), rows[0].Month)
	require.False(t, rows[0].CreatedAt.IsZero())

	require.NoError(t, repo.DeleteTargets(ctx, "u1", "Gaji", "2025-01"))
	rows, err = repo.SelectTargets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, core.MonthKey("2025-02"), rows[0].Month)
}

func TestUpsertTargetRejectsNegative(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.UpsertTarget(context.Background(), core.IncomeTarget{
		UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: -1}, Month: "2025-01",
	})
	require.ErrorIs(t, err, core.ErrNegativeAmount)
}

func TestDeleteCustomCategoryCascades(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	c, err := repo.AddCustomCategory(ctx, core.CustomCategory{
		UserID: "u1", Type: core.TypeIncome, Parent: core.IncomeParent, Name: " Royalti ",
	})
	require.NoError(t, err)
	require.Equal(t, "Royalti", c.Name)

	again, err := repo.AddCustomCategory(ctx, core.CustomCategory{
		UserID: "u1", Type: core.TypeIncome, Parent: core.IncomeParent, Name: "Royalti",
	})
	require.NoError(t, err)
	require.Equal(t, c.ID, again.ID)

	for _, m := range []core.MonthKey{"2025-01", "2025-02"} {
		_, err := repo.UpsertTarget(ctx, core.IncomeTarget{
			UserID: "u1", Category: "Royalti", Amount: core.Money{Minor: 10}, Month: m,
		})
		require.NoError(t, err)
	}
	_, err = repo.UpsertTarget(ctx, core.IncomeTarget{
		UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: 10}, Month: "2025-01",
	})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteCustomCategory(ctx, "u1", core.TypeIncome, "Royalti"))

	cats, err := repo.ListCustomCategories(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, cats)

	rows, err := repo.SelectTargets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Gaji", rows[0].Category)

	err = repo.DeleteCustomCategory(ctx, "u1", core.TypeIncome, "Royalti")
	require.True(t, errors.Is(err, ErrCategoryNotFound))
}

func TestListTransactionsByMonth(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	dates := []time.Time{
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, d := range dates {
		_, err := repo.InsertTransaction(ctx, core.Transaction{
			UserID: "u1", Amount: core.Money{Minor: 100}, Category: "Pemasukan",
			Subcategory: "Gaji", Date: d, Type: core.TypeIncome,
		})
		require.NoError(t, err)
	}

	from, to, err := core.MonthKey("2025-01").Bounds()
	require.NoError(t, err)
	txs, err := repo.ListTransactions(ctx, "u1", from, to)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, 1, txs[0].Date.Day())
	require.Equal(t, 31, txs[1].Date.Day())
	require.Equal(t, core.TypeIncome, txs[0].Type)
}
