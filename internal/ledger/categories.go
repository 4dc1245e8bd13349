package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"finledger/internal/core"
)

// DefaultTopN is the ranking size used when a filter does not set one.
const DefaultTopN = 5

// CategoryFilter selects the transactions GroupByCategory looks at.
type CategoryFilter struct {
	Year     int
	Month    int    // 1-12, required
	Category string // optional, matches the trimmed description exactly
	TopN     int    // <= 0 means DefaultTopN
}

func (f CategoryFilter) Validate() error {
	if f.Month < 1 || f.Month > 12 {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, f.Month)
	}
	return nil
}

func categoryKey(description string) string {
	return strings.TrimSpace(description)
}

// GroupByCategory breaks a month down by transaction description. It returns
// every category sorted by name, the top categories by expense and by income,
// and the period totals.
func GroupByCategory(txs []core.Transaction, filter CategoryFilter) (core.CategoryReport, error) {
	if err := filter.Validate(); err != nil {
		return core.CategoryReport{}, err
	}
	topN := filter.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	wanted := categoryKey(filter.Category)

	report := core.CategoryReport{
		Year:     filter.Year,
		Month:    filter.Month,
		Category: wanted,
	}

	grouped := make(map[string]*core.CategoryStat)
	for _, tx := range txs {
		if !tx.Date.InMonth(filter.Year, filter.Month) {
			continue
		}
		name := categoryKey(tx.Description)
		if wanted != "" && name != wanted {
			continue
		}
		stat, ok := grouped[name]
		if !ok {
			stat = &core.CategoryStat{Name: name}
			grouped[name] = stat
		}
		switch tx.Type {
		case core.Income:
			stat.Income.Cents += tx.Amount.Cents
			report.TotalIncome.Cents += tx.Amount.Cents
		case core.Expense:
			stat.Expense.Cents += tx.Amount.Cents
			report.TotalExpense.Cents += tx.Amount.Cents
		}
		stat.Count++
		report.TotalCount++
	}

	report.Categories = make([]core.CategoryStat, 0, len(grouped))
	for _, stat := range grouped {
		report.Categories = append(report.Categories, *stat)
	}
	slices.SortFunc(report.Categories, func(a, b core.CategoryStat) int {
		return cmp.Compare(a.Name, b.Name)
	})

	report.TopExpenses = topBy(report.Categories, topN, func(s core.CategoryStat) int64 { return s.Expense.Cents })
	report.TopIncomes = topBy(report.Categories, topN, func(s core.CategoryStat) int64 { return s.Income.Cents })
	return report, nil
}

// topBy ranks categories with a positive amount, largest first, ties broken
// by name.
func topBy(stats []core.CategoryStat, n int, amount func(core.CategoryStat) int64) []core.CategoryStat {
	ranked := make([]core.CategoryStat, 0, len(stats))
	for _, s := range stats {
		if amount(s) > 0 {
			ranked = append(ranked, s)
		}
	}
	slices.SortFunc(ranked, func(a, b core.CategoryStat) int {
		if c := cmp.Compare(amount(b), amount(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Categories returns the distinct transaction descriptions, sorted.
func Categories(txs []core.Transaction) []string {
	seen := make(map[string]struct{}, len(txs))
	names := make([]string, 0, len(txs))
	for _, tx := range txs {
		name := categoryKey(tx.Description)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
