package core

import "strings"

// Summary holds the period totals shown at the top of a report.
type Summary struct {
	TotalIncome  Money
	TotalExpense Money
	Balance      Money
}

// Summarize totals income and expense transactions.
func Summarize(txs []Transaction) Summary {
	var in, out int64
	for _, tx := range txs {
		switch tx.Type {
		case TypeIncome:
			in += tx.Amount.Minor
		case TypeExpense:
			out += tx.Amount.Minor
		}
	}
	return Summary{
		TotalIncome:  Money{Minor: in},
		TotalExpense: Money{Minor: out},
		Balance:      Money{Minor: in - out},
	}
}

// MergeCategories concatenates the given lists and removes duplicates and
// blanks, keeping the first occurrence of each name.
func MergeCategories(lists ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
			if strings.TrimSpace(v) == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
