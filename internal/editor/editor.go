// Package editor holds the per-session editing state for income targets:
// unsaved input per category, in-flight saves, and the delete/add flows.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"dompet/internal/auth"
	"dompet/internal/core"
	"dompet/internal/targets"
)

var ErrNotConfirmed = errors.New("deletion not confirmed")

// ConfirmFunc asks the user to confirm a destructive action.
type ConfirmFunc func(prompt string) bool

// DeletePrompt is the confirmation question shown before deleting category.
func DeletePrompt(category string) string {
	return fmt.Sprintf("Apakah anda yakin ingin menghapus target/kategori %q?", category)
}

// Editor wraps a target store with an overlay of unsaved values.
// Overlay entries are keyed by category only and survive month changes.
type Editor struct {
	store      *targets.Store
	categories targets.CategoryGateway
	logger     *slog.Logger

	mu      sync.Mutex
	overlay map[string]string
	saving  map[string]int
}

func New(store *targets.Store, categories targets.CategoryGateway, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{
		store:      store,
		categories: categories,
		logger:     logger.With("component", "editor"),
		overlay:    map[string]string{},
		saving:     map[string]int{},
	}
}

// Change records raw user input for category, normalized to grouped digits.
func (e *Editor) Change(category, input string) string {
	digits := core.StripNonDigits(input)
	formatted := ""
	if digits != "" {
		formatted = core.FormatGrouped(core.ParseDigits(digits))
	}
	e.mu.Lock()
	e.overlay[category] = formatted
	e.mu.Unlock()
	return formatted
}

// Value returns the display value for category in month: the unsaved input
// if any, else the persisted amount, else "".
func (e *Editor) Value(category string, month core.MonthKey) string {
	e.mu.Lock()
	v, ok := e.overlay[category]
	e.mu.Unlock()
	if ok {
		return v
	}
	if t, ok := e.store.Find(category, month); ok {
		return core.FormatGrouped(t.Amount.Minor)
	}
	return ""
}

// Pending reports whether category has unsaved input.
func (e *Editor) Pending(category string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.overlay[category]
	return ok
}

// Saving reports whether a save for category is in flight.
func (e *Editor) Saving(category string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving[category] > 0
}

// Save persists the current value of category for month. An empty or
// unparseable value saves zero. The overlay entry is dropped on success and
// kept on failure.
func (e *Editor) Save(ctx context.Context, category string, month core.MonthKey) (core.IncomeTarget, error) {
	return e.save(ctx, category, month, core.ParseDigits(e.Value(category, month)))
}

// SaveAmount persists input as the amount of category for month without
// going through the overlay, then drops any unsaved input for category.
func (e *Editor) SaveAmount(ctx context.Context, category string, month core.MonthKey, input string) (core.IncomeTarget, error) {
	return e.save(ctx, category, month, core.ParseDigits(input))
}

func (e *Editor) save(ctx context.Context, category string, month core.MonthKey, amount int64) (core.IncomeTarget, error) {
	e.mu.Lock()
	e.saving[category]++
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		if e.saving[category]--; e.saving[category] <= 0 {
			delete(e.saving, category)
		}
		e.mu.Unlock()
	}()

	row, err := e.store.Upsert(ctx, category, amount, month)
	if err != nil {
		return core.IncomeTarget{}, fmt.Errorf("save target %s: %w", category, err)
	}
	e.clear(category)
	e.logger.InfoContext(ctx, "Target saved",
		"category", category,
		"month", string(month),
		"amount", amount)
	return row, nil
}

// Delete removes category for month after confirmation. A user-defined
// income category is deleted as a whole, together with its targets, and the
// store is refreshed. Any other category only loses its target for month.
func (e *Editor) Delete(ctx context.Context, category string, month core.MonthKey, confirm ConfirmFunc) error {
	if confirm == nil || !confirm(DeletePrompt(category)) {
		return ErrNotConfirmed
	}

	custom, err := e.isCustomIncome(ctx, category)
	if err != nil {
		return err
	}
	if custom {
		if err := e.store.DeleteCategory(ctx, e.categories, category); err != nil {
			return fmt.Errorf("delete category %s: %w", category, err)
		}
		e.store.FetchAll(ctx)
		return nil
	}

	if err := e.store.Remove(ctx, category, month); err != nil {
		return fmt.Errorf("delete target %s: %w", category, err)
	}
	e.clear(category)
	return nil
}

// AddCategory creates a user-defined income category.
func (e *Editor) AddCategory(ctx context.Context, name string) (core.CustomCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.CustomCategory{}, core.ErrEmptyCategory
	}
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return core.CustomCategory{}, core.ErrUnauthenticated
	}
	c, err := e.categories.AddCustomCategory(ctx, core.CustomCategory{
		UserID: user.ID,
		Type:   core.TypeIncome,
		Parent: core.IncomeParent,
		Name:   name,
	})
	if err != nil {
		return core.CustomCategory{}, &targets.GatewayError{Op: "add category", Err: err}
	}
	return c, nil
}

// Categories returns the built-in income categories, the user's income
// categories, and any category with a target in month, without duplicates.
func (e *Editor) Categories(ctx context.Context, month core.MonthKey) ([]string, error) {
	custom, err := e.customIncome(ctx)
	if err != nil {
		return nil, err
	}
	var withTarget []string
	for _, t := range e.store.ForMonth(month) {
		withTarget = append(withTarget, t.Category)
	}
	return core.MergeCategories(core.IncomeSubcategories, custom, withTarget), nil
}

func (e *Editor) customIncome(ctx context.Context) ([]string, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, core.ErrUnauthenticated
	}
	cats, err := e.categories.ListCustomCategories(ctx, user.ID)
	if err != nil {
		return nil, &targets.GatewayError{Op: "list categories", Err: err}
	}
	return targets.IncomeCategoryNames(cats), nil
}

func (e *Editor) isCustomIncome(ctx context.Context, category string) (bool, error) {
	names, err := e.customIncome(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == category {
			return true, nil
		}
	}
	return false, nil
}

func (e *Editor) clear(category string) {
	e.mu.Lock()
	delete(e.overlay, category)
	e.mu.Unlock()
}
