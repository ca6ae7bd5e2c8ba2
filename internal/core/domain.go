package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// IncomeParent is the parent label used for every income custom category.
const IncomeParent = "Pemasukan"

type (
	TransactionType string

	// MonthKey identifies a calendar month in the fixed lexical format YYYY-MM.
	MonthKey string

	Money struct {
		Minor int64 // smallest currency unit
	}

	IncomeTarget struct {
		ID        string
		UserID    string
		Category  string
		Amount    Money
		Month     MonthKey
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID          string
		UserID      string
		Amount      Money
		Category    string
		Subcategory string
		Date        time.Time
		Type        TransactionType
		Description string
	}

	CustomCategory struct {
		ID        string
		UserID    string
		Type      TransactionType
		Parent    string
		Name      string
		CreatedAt time.Time
	}

	User struct {
		ID    string
		Email string
	}
)

var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrNegativeAmount  = errors.New("negative amount")
)

// IncomeSubcategories are the built-in income categories offered to every user.
var IncomeSubcategories = []string{
	"Gaji",
	"Bonus",
	"Freelance",
	"Investasi",
	"Bisnis",
	"Hadiah",
	"Lainnya",
}

// MonthOf returns the month key for t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// ParseMonthKey validates s as YYYY-MM.
func ParseMonthKey(s string) (MonthKey, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01", s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return MonthKey(s), nil
}

// Bounds returns the first day of the month and the first day of the next one.
func (m MonthKey) Bounds() (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01", string(m))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidMonth, string(m))
	}
	return start, start.AddDate(0, 1, 0), nil
}

func (m MonthKey) String() string {
	return string(m)
}

func (m Money) Validate() error {
	if m.Minor < 0 {
		return ErrNegativeAmount
	}
	return nil
}

func (t IncomeTarget) Key() TargetKey {
	return TargetKey{Category: t.Category, Month: t.Month}
}

// TargetKey is the client-visible identity of a target row within one user.
type TargetKey struct {
	Category string
	Month    MonthKey
}

func (c CustomCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// IsIncome reports whether the transaction counts toward income totals.
func (t Transaction) IsIncome() bool {
	return t.Type == TypeIncome
}

// FilterByType returns the transactions of the given type, preserving order.
func FilterByType(txs []Transaction, typ TransactionType) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}
