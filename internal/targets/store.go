// Package targets keeps a user's income targets in memory, synchronized with
// the remote data gateway.
//
// Writes are not optimistic: the cache changes only after the gateway has
// confirmed the write, so a failed write never leaves unsaved state behind.
// Every write is bracketed by sync notifications on the injected observer.
package targets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"dompet/internal/auth"
	"dompet/internal/core"
	"dompet/internal/syncstatus"
)

// Gateway is the remote table storage holding income targets.
type Gateway interface {
	// SelectTargets returns every target owned by userID.
	SelectTargets(ctx context.Context, userID string) ([]core.IncomeTarget, error)
	// UpsertTarget inserts or updates the row keyed by (user, category, month)
	// and returns the canonical stored row.
	UpsertTarget(ctx context.Context, t core.IncomeTarget) (core.IncomeTarget, error)
	// DeleteTargets removes the rows matching user, category and month.
	DeleteTargets(ctx context.Context, userID, category string, month core.MonthKey) error
}

// GatewayError reports a failed gateway operation.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err came from the remote gateway.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// Store caches the targets of the user found in the request context.
type Store struct {
	gw       Gateway
	observer syncstatus.Observer
	logger   *slog.Logger

	mu      sync.RWMutex
	targets []core.IncomeTarget
	loaded  bool
}

func New(gw Gateway, observer syncstatus.Observer, logger *slog.Logger) *Store {
	if observer == nil {
		observer = syncstatus.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		gw:       gw,
		observer: observer,
		logger:   logger.With("component", "targets"),
	}
}

// FetchAll replaces the cache with every target of the current user.
//
// Failures are logged and swallowed; the cache keeps whatever it held before.
// No sync notifications are emitted for reads.
func (s *Store) FetchAll(ctx context.Context) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return
	}
	rows, err := s.gw.SelectTargets(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error fetching income targets",
			"operation", "list",
			"user_id", user.ID,
			"error", err)
		return
	}
	if rows == nil {
		rows = []core.IncomeTarget{}
	}

	s.mu.Lock()
	s.targets = rows
	s.loaded = true
	s.mu.Unlock()
}

// Upsert saves amount as the target for category in month and patches the
// cache with the row returned by the gateway.
func (s *Store) Upsert(ctx context.Context, category string, amount int64, month core.MonthKey) (core.IncomeTarget, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return core.IncomeTarget{}, core.ErrUnauthenticated
	}
	if amount < 0 {
		amount = 0
	}

	s.observer.SyncStart(ctx)
	row, err := s.gw.UpsertTarget(ctx, core.IncomeTarget{
		UserID:   user.ID,
		Category: category,
		Amount:   core.Money{Minor: amount},
		Month:    month,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error upserting income target",
			"operation", "update",
			"category", category,
			"month", string(month),
			"amount", amount,
			"error", err)
		s.observer.SyncError(ctx, err)
		return core.IncomeTarget{}, &GatewayError{Op: "upsert", Err: err}
	}
	s.observer.SyncComplete(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.targets {
		if s.targets[i].Category == category && s.targets[i].Month == month {
			s.targets[i] = row
			return row, nil
		}
	}
	s.targets = append(s.targets, row)
	return row, nil
}

// Remove deletes the target for category in month and drops the matching
// cache entries. Entries of the same category in other months are kept.
func (s *Store) Remove(ctx context.Context, category string, month core.MonthKey) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return core.ErrUnauthenticated
	}

	s.observer.SyncStart(ctx)
	if err := s.gw.DeleteTargets(ctx, user.ID, category, month); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting income target",
			"operation", "delete",
			"category", category,
			"month", string(month),
			"error", err)
		s.observer.SyncError(ctx, err)
		return &GatewayError{Op: "delete", Err: err}
	}
	s.observer.SyncComplete(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.targets[:0:0]
	for _, t := range s.targets {
		if t.Category == category && t.Month == month {
			continue
		}
		kept = append(kept, t)
	}
	s.targets = kept
	return nil
}

// DeleteCategory removes the user-defined income category through cg, which
// also deletes its targets, and drops every cached entry of that category.
func (s *Store) DeleteCategory(ctx context.Context, cg CategoryGateway, category string) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return core.ErrUnauthenticated
	}

	s.observer.SyncStart(ctx)
	if err := cg.DeleteCustomCategory(ctx, user.ID, core.TypeIncome, category); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting custom category",
			"operation", "delete_category",
			"category", category,
			"error", err)
		s.observer.SyncError(ctx, err)
		return &GatewayError{Op: "delete category", Err: err}
	}
	s.observer.SyncComplete(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.targets[:0:0]
	for _, t := range s.targets {
		if t.Category != category {
			kept = append(kept, t)
		}
	}
	s.targets = kept
	return nil
}

// Targets returns a copy of the cache in gateway order.
func (s *Store) Targets() []core.IncomeTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.IncomeTarget(nil), s.targets...)
}

// ForMonth returns the cached targets of one month.
func (s *Store) ForMonth(month core.MonthKey) []core.IncomeTarget {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.IncomeTarget
	for _, t := range s.targets {
		if t.Month == month {
			out = append(out, t)
		}
	}
	return out
}

// Find returns the cached target for category in month.
func (s *Store) Find(category string, month core.MonthKey) (core.IncomeTarget, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.targets {
		if t.Category == category && t.Month == month {
			return t, true
		}
	}
	return core.IncomeTarget{}, false
}

// Loaded reports whether a fetch has succeeded at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}
