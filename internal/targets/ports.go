package targets

import (
	"context"
	"errors"
	"time"

	"dompet/internal/core"
)

// ErrCategoryNotFound is returned when deleting a custom category that does
// not exist.
var ErrCategoryNotFound = errors.New("custom category not found")

// CategoryGateway manages user-defined categories.
type CategoryGateway interface {
	ListCustomCategories(ctx context.Context, userID string) ([]core.CustomCategory, error)
	AddCustomCategory(ctx context.Context, c core.CustomCategory) (core.CustomCategory, error)
	// DeleteCustomCategory removes the category and the user's targets
	// recorded under it.
	DeleteCustomCategory(ctx context.Context, userID string, typ core.TransactionType, name string) error
}

// TransactionReader lists transactions dated in [from, to).
type TransactionReader interface {
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error)
}

// Backend is everything the application needs from a data store.
type Backend interface {
	Gateway
	CategoryGateway
	TransactionReader
}

// IncomeCategoryNames returns the names of the income categories in cats.
func IncomeCategoryNames(cats []core.CustomCategory) []string {
	var out []string
	for _, c := range cats {
		if c.Type == core.TypeIncome {
			out = append(out, c.Name)
		}
	}
	return out
}
