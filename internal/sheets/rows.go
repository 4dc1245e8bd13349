package sheets

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"finledger/internal/core"
)

var ledgerHeader = []any{"Date", "Description", "Type", "Amount", "Original due date"}

var summaryHeader = []any{"Category", "Income", "Expense", "Net", "Count"}

// TitleFor names the tab holding userID's ledger. Characters the A1
// notation treats specially are replaced.
func TitleFor(userID string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '\'', '!', '[', ']', '*', '?', '/', '\\', ':':
			return '_'
		}
		return r
	}, userID)
	return "Ledger " + clean
}

// LedgerRows lays out every transaction oldest first, followed by the
// category summary of report's month. Amounts are plain two-decimal
// strings so the sheet parses them as numbers.
func LedgerRows(txs []core.Transaction, report core.CategoryReport) [][]any {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, func(a, b core.Transaction) int {
		if c := a.Date.Compare(b.Date.Time); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	rows := make([][]any, 0, len(sorted)+len(report.Categories)+5)
	rows = append(rows, ledgerHeader)
	for _, t := range sorted {
		due := ""
		if t.OriginalDueDate != nil {
			due = t.OriginalDueDate.String()
		}
		rows = append(rows, []any{t.Date.String(), t.Description, string(t.Type), t.Amount.String(), due})
	}

	rows = append(rows, []any{})
	rows = append(rows, []any{"Summary", fmt.Sprintf("%04d-%02d", report.Year, report.Month)})
	rows = append(rows, summaryHeader)
	for _, c := range report.Categories {
		rows = append(rows, []any{c.Name, c.Income.String(), c.Expense.String(), c.Net().String(), c.Count})
	}
	rows = append(rows, []any{"Total", report.TotalIncome.String(), report.TotalExpense.String(), report.Net().String(), report.TotalCount})
	return rows
}
