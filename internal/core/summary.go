package core

const (
	StatusOverdue   DueStatus = "overdue"
	StatusDueToday  DueStatus = "due_today"
	StatusDueSoon   DueStatus = "due_soon"
	StatusScheduled DueStatus = "scheduled"
)

// DueStatus is derived from a scheduled item's due date and the current day.
// It is never stored.
type DueStatus string

// Dashboard is the balance as of a day plus that day's month totals.
type Dashboard struct {
	AsOf         Date
	Balance      Money
	MonthIncome  Money
	MonthExpense Money
}

func (d Dashboard) Net() Money {
	return d.MonthIncome.Sub(d.MonthExpense)
}

// MonthTotals holds income and expense sums for one calendar month.
type MonthTotals struct {
	Year    int
	Month   int // 1-12
	Income  Money
	Expense Money
}

func (t MonthTotals) Net() Money {
	return t.Income.Sub(t.Expense)
}

// Projection is the balance over an inclusive date range, combining
// confirmed transactions and pending scheduled items.
type Projection struct {
	Start                 Date
	End                   Date
	StartingBalance       Money
	EndingBalance         Money
	NetChange             Money
	ConfirmedCount        int
	ScheduledIncomeCount  int
	ScheduledExpenseCount int
	ScheduledIncomeTotal  Money
	ScheduledExpenseTotal Money
}

// DayBalance is one point of a daily running-balance series.
type DayBalance struct {
	Date    Date
	Balance Money
	Delta   Money
}

// CategoryStat aggregates the transactions sharing one description.
type CategoryStat struct {
	Name    string
	Income  Money
	Expense Money
	Count   int
}

func (c CategoryStat) Net() Money {
	return c.Income.Sub(c.Expense)
}

// CategoryReport is the per-category breakdown of one month.
type CategoryReport struct {
	Year         int
	Month        int
	Category     string // empty when not filtered
	Categories   []CategoryStat
	TopExpenses  []CategoryStat
	TopIncomes   []CategoryStat
	TotalIncome  Money
	TotalExpense Money
	TotalCount   int
}

func (r CategoryReport) Net() Money {
	return r.TotalIncome.Sub(r.TotalExpense)
}

func (r CategoryReport) CategoryCount() int {
	return len(r.Categories)
}

// ScheduledView is a pending item decorated with its derived status.
type ScheduledView struct {
	Item         ScheduledItem
	Status       DueStatus
	DaysUntilDue int
}
