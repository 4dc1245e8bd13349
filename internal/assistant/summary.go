package assistant

import (
	"fmt"
	"strings"

	"finledger/internal/core"
)

// SummaryMarker opens every financial summary attached to a prompt.
const SummaryMarker = "[FINANCIAL DATA]"

// Summary renders the dashboard figures as plain text, one per line. It is
// derived from the same Dashboard the API serves, so the assistant never
// sees numbers the user does not.
func Summary(d core.Dashboard) string {
	var b strings.Builder
	b.WriteString(SummaryMarker)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Current balance: %s\n", d.Balance)
	fmt.Fprintf(&b, "Monthly income: %s\n", d.MonthIncome)
	fmt.Fprintf(&b, "Monthly expenses: %s\n", d.MonthExpense)
	fmt.Fprintf(&b, "Monthly net: %s", d.Net())
	return b.String()
}
