package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"dompet/internal/auth"
	"dompet/internal/core"
	"dompet/internal/storage/memory"
	"dompet/internal/targets"
)

type failingGateway struct {
	*memory.Store
}

func (failingGateway) UpsertTarget(context.Context, core.IncomeTarget) (core.IncomeTarget, error) {
	return core.IncomeTarget{}, errors.New("offline")
}

func setup(t *testing.T) (context.Context, *Editor, *memory.Store) {
	t.Helper()
	mem := memory.New()
	ctx := auth.WithUser(context.Background(), core.User{ID: "u1"})
	return ctx, New(targets.New(mem, nil, nil), mem, nil), mem
}

func yes(string) bool { return true }

func TestChangeFormatsDigits(t *testing.T) {
	_, ed, _ := setup(t)
	require.Equal(t, "5.000.000", ed.Change("Gaji", "Rp 5000000"))
	require.Equal(t, "5.000.000", ed.Value("Gaji", "2025-01"))
	require.Equal(t, "", ed.Change("Gaji", "abc"))
	require.True(t, ed.Pending("Gaji"))
	require.Equal(t, "", ed.Value("Gaji", "2025-01"))
}

func TestSaveClearsOverlay(t *testing.T) {
	ctx, ed, _ := setup(t)

	ed.Change("Gaji", "5000000")
	row, err := ed.Save(ctx, "Gaji", "2025-01")
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), row.Amount.Minor)
	require.False(t, ed.Pending("Gaji"))
	require.False(t, ed.Saving("Gaji"))
	require.Equal(t, "5.000.000", ed.Value("Gaji", "2025-01"))
	require.Equal(t, "", ed.Value("Gaji", "2025-02"))

	// No pending input saves the persisted value again.
	row, err = ed.Save(ctx, "Gaji", "2025-01")
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), row.Amount.Minor)

	// Empty input saves zero.
	ed.Change("Bonus", "")
	row, err = ed.Save(ctx, "Bonus", "2025-01")
	require.NoError(t, err)
	require.Zero(t, row.Amount.Minor)
}

func TestSaveAmountBypassesOverlay(t *testing.T) {
	ctx, ed, _ := setup(t)

	ed.Change("Gaji", "999")
	row, err := ed.SaveAmount(ctx, "Gaji", "2025-01", "Rp 5.000.000")
	require.NoError(t, err)
	require.Equal(t, int64(5_000_000), row.Amount.Minor)
	require.False(t, ed.Pending("Gaji"))
	require.False(t, ed.Saving("Gaji"))
	require.Equal(t, "5.000.000", ed.Value("Gaji", "2025-01"))

	row, err = ed.SaveAmount(ctx, "Gaji", "2025-01", "")
	require.NoError(t, err)
	require.Zero(t, row.Amount.Minor)
}

func TestSaveFailureKeepsOverlay(t *testing.T) {
	mem := memory.New()
	ctx := auth.WithUser(context.Background(), core.User{ID: "u1"})
	ed := New(targets.New(failingGateway{mem}, nil, nil), mem, nil)

	ed.Change("Gaji", "100")
	_, err := ed.Save(ctx, "Gaji", "2025-01")
	require.Error(t, err)
	require.True(t, targets.IsGatewayError(err))
	require.Equal(t, "100", ed.Value("Gaji", "2025-01"))
	require.False(t, ed.Saving("Gaji"))
}

func TestSaveUnauthenticated(t *testing.T) {
	_, ed, _ := setup(t)
	ed.Change("Gaji", "100")
	_, err := ed.Save(context.Background(), "Gaji", "2025-01")
	require.ErrorIs(t, err, core.ErrUnauthenticated)
	require.True(t, ed.Pending("Gaji"))
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx, ed, _ := setup(t)
	ed.Change("Gaji", "100")
	_, err := ed.Save(ctx, "Gaji", "2025-01")
	require.NoError(t, err)

	var prompt string
	err = ed.Delete(ctx, "Gaji", "2025-01", func(p string) bool { prompt = p; return false })
	require.ErrorIs(t, err, ErrNotConfirmed)
	require.Contains(t, prompt, `"Gaji"`)
	require.Equal(t, "100", ed.Value("Gaji", "2025-01"))

	require.ErrorIs(t, ed.Delete(ctx, "Gaji", "2025-01", nil), ErrNotConfirmed)
}

func TestDeleteBuiltInRemovesTargetOnly(t *testing.T) {
	ctx, ed, _ := setup(t)
	for _, m := range []core.MonthKey{"2025-01", "2025-02"} {
		ed.Change("Gaji", "100")
		_, err := ed.Save(ctx, "Gaji", m)
		require.NoError(t, err)
	}
	ed.Change("Gaji", "999")

	require.NoError(t, ed.Delete(ctx, "Gaji", "2025-01", yes))
	require.False(t, ed.Pending("Gaji"))
	require.Equal(t, "", ed.Value("Gaji", "2025-01"))
	require.Equal(t, "100", ed.Value("Gaji", "2025-02"))
}

func TestDeleteCustomCategory(t *testing.T) {
	ctx, ed, mem := setup(t)

	c, err := ed.AddCategory(ctx, "  Royalti ")
	require.NoError(t, err)
	require.Equal(t, "Royalti", c.Name)
	require.Equal(t, core.IncomeParent, c.Parent)
	require.Equal(t, core.TypeIncome, c.Type)

	ed.Change("Royalti", "250")
	_, err = ed.Save(ctx, "Royalti", "2025-01")
	require.NoError(t, err)

	require.NoError(t, ed.Delete(ctx, "Royalti", "2025-01", yes))

	cats, err := mem.ListCustomCategories(ctx, "u1")
	require.NoError(t, err)
	require.Empty(t, cats)
	_, ok := ed.store.Find("Royalti", "2025-01")
	require.False(t, ok, "store is refreshed after the cascade")
}

type recorder struct {
	events []string
}

func (r *recorder) SyncStart(context.Context)        { r.events = append(r.events, "start") }
func (r *recorder) SyncComplete(context.Context)     { r.events = append(r.events, "complete") }
func (r *recorder) SyncError(context.Context, error) { r.events = append(r.events, "error") }

type failingCategories struct {
	*memory.Store
}

func (failingCategories) DeleteCustomCategory(context.Context, string, core.TransactionType, string) error {
	return errors.New("offline")
}

func TestDeleteCustomCategoryNotifies(t *testing.T) {
	mem := memory.New()
	ctx := auth.WithUser(context.Background(), core.User{ID: "u1"})
	obs := &recorder{}
	ed := New(targets.New(mem, obs, nil), mem, nil)

	_, err := ed.AddCategory(ctx, "Royalti")
	require.NoError(t, err)
	require.NoError(t, ed.Delete(ctx, "Royalti", "2025-01", yes))
	require.Equal(t, []string{"start", "complete"}, obs.events)

	obs.events = nil
	ed = New(targets.New(mem, obs, nil), failingCategories{mem}, nil)
	_, err = ed.AddCategory(ctx, "Hibah")
	require.NoError(t, err)
	err = ed.Delete(ctx, "Hibah", "2025-01", yes)
	require.True(t, targets.IsGatewayError(err))
	require.Equal(t, []string{"start", "error"}, obs.events)
}

func TestAddCategoryValidation(t *testing.T) {
	ctx, ed, _ := setup(t)
	_, err := ed.AddCategory(ctx, "   ")
	require.ErrorIs(t, err, core.ErrEmptyCategory)
	_, err = ed.AddCategory(context.Background(), "Royalti")
	require.ErrorIs(t, err, core.ErrUnauthenticated)
}

func TestCategoriesUnion(t *testing.T) {
	ctx, ed, mem := setup(t)

	_, err := ed.AddCategory(ctx, "Royalti")
	require.NoError(t, err)
	_, err = mem.AddCustomCategory(ctx, core.CustomCategory{UserID: "u1", Type: core.TypeExpense, Name: "Kopi"})
	require.NoError(t, err)
	for _, c := range []string{"Dividen", "Gaji"} {
		ed.Change(c, "1")
		_, err := ed.Save(ctx, c, "2025-01")
		require.NoError(t, err)
	}

	got, err := ed.Categories(ctx, "2025-01")
	require.NoError(t, err)
	want := append(append([]string{}, core.IncomeSubcategories...), "Royalti", "Dividen")
	require.Equal(t, want, got)

	got, err = ed.Categories(ctx, "2025-02")
	require.NoError(t, err)
	require.NotContains(t, got, "Dividen")
}
