// Package ledger derives balances, projections and category statistics from
// full snapshots of a user's transactions and scheduled items.
//
// Every function is pure: it recomputes from the slices it is given and
// keeps no state between calls, so callers can hand it the latest snapshot
// on every change without worrying about incremental drift.
package ledger

import (
	"fmt"

	"finledger/internal/core"
)

// BalanceAsOf sums the signed amounts of every transaction dated on or
// before asOf.
func BalanceAsOf(txs []core.Transaction, asOf core.Date) core.Money {
	var cents int64
	for _, tx := range txs {
		if !tx.Date.After(asOf) {
			cents += tx.Signed()
		}
	}
	return core.Money{Cents: cents}
}

// MonthlyTotals sums income and expense separately for one calendar month.
func MonthlyTotals(txs []core.Transaction, year, month int) core.MonthTotals {
	totals := core.MonthTotals{Year: year, Month: month}
	for _, tx := range txs {
		if !tx.Date.InMonth(year, month) {
			continue
		}
		switch tx.Type {
		case core.Income:
			totals.Income.Cents += tx.Amount.Cents
		case core.Expense:
			totals.Expense.Cents += tx.Amount.Cents
		}
	}
	return totals
}

// Dashboard returns the balance as of today together with today's month
// totals. The assistant summary is built from the same value.
func Dashboard(txs []core.Transaction, today core.Date) core.Dashboard {
	totals := MonthlyTotals(txs, today.Year(), today.Month())
	return core.Dashboard{
		AsOf:         today,
		Balance:      BalanceAsOf(txs, today),
		MonthIncome:  totals.Income,
		MonthExpense: totals.Expense,
	}
}

func validateRange(start, end core.Date) error {
	if err := start.Validate(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if err := end.Validate(); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if start.After(end) {
		return fmt.Errorf("%w: %s > %s", core.ErrInvalidRange, start, end)
	}
	return nil
}

// Project computes the balance over [start, end]. The starting balance is
// everything confirmed before start; confirmed transactions and scheduled
// items dated inside the range are then applied.
func Project(txs []core.Transaction, scheduledExpenses, scheduledIncomes []core.ScheduledItem, start, end core.Date) (core.Projection, error) {
	if err := validateRange(start, end); err != nil {
		return core.Projection{}, err
	}

	p := core.Projection{
		Start:           start,
		End:             end,
		StartingBalance: BalanceAsOf(txs, start.AddDays(-1)),
	}

	var delta int64
	for _, tx := range txs {
		if tx.Date.Within(start, end) {
			delta += tx.Signed()
			p.ConfirmedCount++
		}
	}
	for _, item := range scheduledIncomes {
		if item.DueDate.Within(start, end) {
			delta += item.Amount.Cents
			p.ScheduledIncomeCount++
			p.ScheduledIncomeTotal.Cents += item.Amount.Cents
		}
	}
	for _, item := range scheduledExpenses {
		if item.DueDate.Within(start, end) {
			delta -= item.Amount.Cents
			p.ScheduledExpenseCount++
			p.ScheduledExpenseTotal.Cents += item.Amount.Cents
		}
	}

	p.NetChange = core.Money{Cents: delta}
	p.EndingBalance = p.StartingBalance.Add(p.NetChange)
	return p, nil
}
