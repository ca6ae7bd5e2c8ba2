package targets

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dompet/internal/auth"
	"dompet/internal/core"
)

type fakeGateway struct {
	mu      sync.Mutex
	rows    []core.IncomeTarget
	calls   int
	failAll error
	nextID  int
}

func (f *fakeGateway) SelectTargets(_ context.Context, userID string) ([]core.IncomeTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll != nil {
		return nil, f.failAll
	}
	var out []core.IncomeTarget
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeGateway) UpsertTarget(_ context.Context, t core.IncomeTarget) (core.IncomeTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll != nil {
		return core.IncomeTarget{}, f.failAll
	}
	for i, r := range f.rows {
		if r.UserID == t.UserID && r.Category == t.Category && r.Month == t.Month {
			f.rows[i].Amount = t.Amount
			return f.rows[i], nil
		}
	}
	f.nextID++
	t.ID = "t" + string(rune('0'+f.nextID))
	f.rows = append(f.rows, t)
	return t, nil
}

func (f *fakeGateway) DeleteTargets(_ context.Context, userID, category string, month core.MonthKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAll != nil {
		return f.failAll
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.UserID == userID && r.Category == category && r.Month == month {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

type recorder struct {
	events []string
}

func (r *recorder) SyncStart(context.Context)        { r.events = append(r.events, "start") }
func (r *recorder) SyncComplete(context.Context)     { r.events = append(r.events, "complete") }
func (r *recorder) SyncError(context.Context, error) { r.events = append(r.events, "error") }

func userCtx() context.Context {
	return auth.WithUser(context.Background(), core.User{ID: "u1"})
}

func TestUpsertWithoutUser(t *testing.T) {
	gw := &fakeGateway{}
	obs := &recorder{}
	s := New(gw, obs, nil)

	_, err := s.Upsert(context.Background(), "Gaji", 100, "2025-01")
	require.ErrorIs(t, err, core.ErrUnauthenticated)
	require.Zero(t, gw.calls)
	require.Empty(t, obs.events)
	require.Empty(t, s.Targets())

	require.ErrorIs(t, s.Remove(context.Background(), "Gaji", "2025-01"), core.ErrUnauthenticated)
	require.Zero(t, gw.calls)
}

func TestUpsertReplacesInPlace(t *testing.T) {
	ctx := userCtx()
	gw := &fakeGateway{}
	obs := &recorder{}
	s := New(gw, obs, nil)

	_, err := s.Upsert(ctx, "Gaji", 5_000_000, "2025-01")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "Bonus", 1_000_000, "2025-01")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "Gaji", 6_000_000, "2025-01")
	require.NoError(t, err)

	got := s.Targets()
	require.Len(t, got, 2)
	require.Equal(t, "Gaji", got[0].Category)
	require.Equal(t, int64(6_000_000), got[0].Amount.Minor)
	require.Equal(t, "Bonus", got[1].Category)
	require.Equal(t, []string{"start", "complete", "start", "complete", "start", "complete"}, obs.events)
}

func TestUpsertFailureLeavesCacheUntouched(t *testing.T) {
	ctx := userCtx()
	gw := &fakeGateway{}
	obs := &recorder{}
	s := New(gw, obs, nil)

	_, err := s.Upsert(ctx, "Gaji", 100, "2025-01")
	require.NoError(t, err)
	before := s.Targets()

	gw.failAll = errors.New("network down")
	_, err = s.Upsert(ctx, "Gaji", 999, "2025-01")
	require.Error(t, err)
	require.True(t, IsGatewayError(err))
	require.Equal(t, before, s.Targets())
	require.Equal(t, "error", obs.events[len(obs.events)-1])

	err = s.Remove(ctx, "Gaji", "2025-01")
	require.True(t, IsGatewayError(err))
	require.Equal(t, before, s.Targets())
}

func TestRemoveKeepsOtherMonths(t *testing.T) {
	ctx := userCtx()
	gw := &fakeGateway{}
	s := New(gw, nil, nil)

	for _, m := range []core.MonthKey{"2025-01", "2025-02"} {
		_, err := s.Upsert(ctx, "Gaji", 100, m)
		require.NoError(t, err)
	}
	require.NoError(t, s.Remove(ctx, "Gaji", "2025-01"))

	got := s.Targets()
	require.Len(t, got, 1)
	require.Equal(t, core.MonthKey("2025-02"), got[0].Month)
	_, ok := s.Find("Gaji", "2025-01")
	require.False(t, ok)
}

func TestFetchAll(t *testing.T) {
	ctx := userCtx()
	gw := &fakeGateway{rows: []core.IncomeTarget{
		{ID: "a", UserID: "u1", Category: "Gaji", Amount: core.Money{Minor: 10}, Month: "2025-01"},
		{ID: "b", UserID: "u2", Category: "Gaji", Amount: core.Money{Minor: 20}, Month: "2025-01"},
		{ID: "c", UserID: "u1", Category: "Bonus", Amount: core.Money{Minor: 30}, Month: "2025-02"},
	}}
	obs := &recorder{}
	s := New(gw, obs, nil)
	require.False(t, s.Loaded())

	s.FetchAll(context.Background())
	require.False(t, s.Loaded(), "no user, no fetch")

	s.FetchAll(ctx)
	require.True(t, s.Loaded())
	require.Len(t, s.Targets(), 2)
	require.Len(t, s.ForMonth("2025-02"), 1)
	require.Empty(t, obs.events, "reads do not notify")

	gw.failAll = errors.New("timeout")
	s.FetchAll(ctx)
	require.Len(t, s.Targets(), 2, "failed fetch keeps the previous cache")
}

func TestUpsertClampsNegative(t *testing.T) {
	s := New(&fakeGateway{}, nil, nil)
	row, err := s.Upsert(userCtx(), "Gaji", -5, "2025-01")
	require.NoError(t, err)
	require.Zero(t, row.Amount.Minor)
}

type fakeCategories struct {
	gw  *fakeGateway
	err error
}

func (f *fakeCategories) ListCustomCategories(context.Context, string) ([]core.CustomCategory, error) {
	return nil, nil
}

func (f *fakeCategories) AddCustomCategory(_ context.Context, c core.CustomCategory) (core.CustomCategory, error) {
	return c, nil
}

func (f *fakeCategories) DeleteCustomCategory(_ context.Context, userID string, _ core.TransactionType, name string) error {
	if f.err != nil {
		return f.err
	}
	f.gw.mu.Lock()
	defer f.gw.mu.Unlock()
	kept := f.gw.rows[:0]
	for _, r := range f.gw.rows {
		if r.UserID == userID && r.Category == name {
			continue
		}
		kept = append(kept, r)
	}
	f.gw.rows = kept
	return nil
}

func TestDeleteCategoryDropsEveryMonth(t *testing.T) {
	ctx := userCtx()
	gw := &fakeGateway{}
	obs := &recorder{}
	s := New(gw, obs, nil)
	for _, m := range []core.MonthKey{"2025-01", "2025-02"} {
		_, err := s.Upsert(ctx, "Royalti", 100, m)
		require.NoError(t, err)
	}
	_, err := s.Upsert(ctx, "Gaji", 100, "2025-01")
	require.NoError(t, err)
	obs.events = nil

	cg := &fakeCategories{gw: gw, err: errors.New("offline")}
	err = s.DeleteCategory(ctx, cg, "Royalti")
	require.True(t, IsGatewayError(err))
	require.Len(t, s.Targets(), 3)
	require.Equal(t, []string{"start", "error"}, obs.events)

	obs.events = nil
	cg.err = nil
	require.NoError(t, s.DeleteCategory(ctx, cg, "Royalti"))
	got := s.Targets()
	require.Len(t, got, 1)
	require.Equal(t, "Gaji", got[0].Category)
	require.Equal(t, []string{"start", "complete"}, obs.events)

	require.ErrorIs(t, s.DeleteCategory(context.Background(), cg, "Gaji"), core.ErrUnauthenticated)
}
