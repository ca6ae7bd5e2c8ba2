// Package memory is an in-process gateway used by tests and the memory backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dompet/internal/core"
	"dompet/internal/targets"
)

var ErrCategoryNotFound = targets.ErrCategoryNotFound

type Store struct {
	mu      sync.Mutex
	targets []core.IncomeTarget
	cats    []core.CustomCategory
	txs     []core.Transaction
	now     func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

func (s *Store) SelectTargets(_ context.Context, userID string) ([]core.IncomeTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.IncomeTarget{}
	for _, t := range s.targets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpsertTarget(_ context.Context, t core.IncomeTarget) (core.IncomeTarget, error) {
	if err := t.Amount.Validate(); err != nil {
		return core.IncomeTarget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for i, row := range s.targets {
		if row.UserID == t.UserID && row.Category == t.Category && row.Month == t.Month {
			s.targets[i].Amount = t.Amount
			s.targets[i].UpdatedAt = now
			return s.targets[i], nil
		}
	}
	t.ID = uuid.NewString()
	t.CreatedAt = now
	t.UpdatedAt = now
	s.targets = append(s.targets, t)
	return t, nil
}

func (s *Store) DeleteTargets(_ context.Context, userID, category string, month core.MonthKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = removeTargets(s.targets, func(t core.IncomeTarget) bool {
		return t.UserID == userID && t.Category == category && t.Month == month
	})
	return nil
}

func (s *Store) ListCustomCategories(_ context.Context, userID string) ([]core.CustomCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.CustomCategory
	for _, c := range s.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) AddCustomCategory(_ context.Context, c core.CustomCategory) (core.CustomCategory, error) {
	if err := c.Validate(); err != nil {
		return core.CustomCategory{}, err
	}
	c.Name = strings.TrimSpace(c.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if existing.UserID == c.UserID && existing.Type == c.Type && existing.Name == c.Name {
			return existing, nil
		}
	}
	c.ID = uuid.NewString()
	c.CreatedAt = s.now().UTC()
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) DeleteCustomCategory(_ context.Context, userID string, typ core.TransactionType, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	kept := s.cats[:0:0]
	for _, c := range s.cats {
		if c.UserID == userID && c.Type == typ && c.Name == name {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return ErrCategoryNotFound
	}
	s.cats = kept
	if typ == core.TypeIncome {
		s.targets = removeTargets(s.targets, func(t core.IncomeTarget) bool {
			return t.UserID == userID && t.Category == name
		})
	}
	return nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.UserID != userID || t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// InsertTransaction records a transaction fixture.
func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, t)
	return t, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func removeTargets(in []core.IncomeTarget, drop func(core.IncomeTarget) bool) []core.IncomeTarget {
	out := in[:0:0]
	for _, t := range in {
		if !drop(t) {
			out = append(out, t)
		}
	}
	return out
}
