package core

// TargetProgress is the display state of one active income target.
type TargetProgress struct {
	Target          IncomeTarget
	Actual          Money
	ProgressPercent float64 // clamped to [0, 100]
	Completed       bool
}

// Reconcile combines targets with income transactions into per-target progress.
//
// Targets with a zero amount are skipped. Incomes are summed by subcategory,
// which is the effective category key of an income transaction. The result
// keeps the input order of targets. Completion uses the unclamped actual, so
// reaching the target exactly counts as completed.
func Reconcile(targets []IncomeTarget, incomes []Transaction) []TargetProgress {
	byCategory := AggregateIncome(incomes)

	out := make([]TargetProgress, 0, len(targets))
	for _, t := range targets {
		if t.Amount.Minor <= 0 {
			continue
		}
		actual := byCategory[t.Category]
		progress := float64(actual) / float64(t.Amount.Minor) * 100
		if progress > 100 {
			progress = 100
		}
		if progress < 0 {
			progress = 0
		}
		out = append(out, TargetProgress{
			Target:          t,
			Actual:          Money{Minor: actual},
			ProgressPercent: progress,
			Completed:       actual >= t.Amount.Minor,
		})
	}
	return out
}

// AggregateIncome sums income transactions by subcategory.
// Non-income transactions are ignored.
func AggregateIncome(txs []Transaction) map[string]int64 {
	sums := make(map[string]int64)
	for _, tx := range txs {
		if tx.Type != "" && !tx.IsIncome() {
			continue
		}
		sums[tx.Subcategory] += tx.Amount.Minor
	}
	return sums
}
