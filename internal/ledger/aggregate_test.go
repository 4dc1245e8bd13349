package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/core"
)

func tx(typ core.Direction, cents int64, y, m, d int, desc string) core.Transaction {
	return core.Transaction{
		UserID:      "u1",
		Description: desc,
		Amount:      core.Money{Cents: cents},
		Date:        core.NewDate(y, m, d),
		Type:        typ,
	}
}

func scheduled(dir core.Direction, cents int64, y, m, d int) core.ScheduledItem {
	return core.ScheduledItem{
		UserID:      "u1",
		Description: "scheduled",
		Amount:      core.Money{Cents: cents},
		DueDate:     core.NewDate(y, m, d),
		Direction:   dir,
		Status:      core.StatusPending,
	}
}

// January: +1000 on the 1st, -200 on the 15th. February: -50 on the 1st.
func januaryLedger() []core.Transaction {
	return []core.Transaction{
		tx(core.Income, 100000, 2024, 1, 1, "salary"),
		tx(core.Expense, 20000, 2024, 1, 15, "groceries"),
		tx(core.Expense, 5000, 2024, 2, 1, "groceries"),
	}
}

func TestBalanceAsOf(t *testing.T) {
	txs := januaryLedger()

	assert.Equal(t, int64(80000), BalanceAsOf(txs, core.NewDate(2024, 1, 31)).Cents)
	assert.Equal(t, int64(75000), BalanceAsOf(txs, core.NewDate(2024, 2, 1)).Cents)
	assert.Equal(t, int64(0), BalanceAsOf(txs, core.NewDate(2023, 12, 31)).Cents)
	assert.Equal(t, int64(0), BalanceAsOf(nil, core.NewDate(2024, 1, 31)).Cents)

	t.Run("boundary day is included", func(t *testing.T) {
		assert.Equal(t, int64(80000), BalanceAsOf(txs, core.NewDate(2024, 1, 15)).Cents)
		assert.Equal(t, int64(100000), BalanceAsOf(txs, core.NewDate(2024, 1, 14)).Cents)
	})

	t.Run("later transactions never change the result", func(t *testing.T) {
		asOf := core.NewDate(2024, 1, 31)
		before := BalanceAsOf(txs, asOf)
		more := append(txs, tx(core.Income, 999999, 2024, 2, 1, "bonus"), tx(core.Expense, 1, 2030, 1, 1, "x"))
		assert.Equal(t, before, BalanceAsOf(more, asOf))
	})
}

func TestMonthlyTotals(t *testing.T) {
	txs := januaryLedger()

	jan := MonthlyTotals(txs, 2024, 1)
	assert.Equal(t, int64(100000), jan.Income.Cents)
	assert.Equal(t, int64(20000), jan.Expense.Cents)
	assert.Equal(t, int64(80000), jan.Net().Cents)

	t.Run("neighbouring months are excluded", func(t *testing.T) {
		edges := []core.Transaction{
			tx(core.Expense, 111, 2023, 12, 31, "nye"),
			tx(core.Income, 222, 2024, 1, 31, "last day"),
			tx(core.Expense, 333, 2024, 2, 1, "first of feb"),
		}
		got := MonthlyTotals(edges, 2024, 1)
		assert.Equal(t, int64(222), got.Income.Cents)
		assert.Equal(t, int64(0), got.Expense.Cents)
	})

	t.Run("same month of another year is excluded", func(t *testing.T) {
		got := MonthlyTotals([]core.Transaction{tx(core.Income, 5, 2023, 1, 10, "old")}, 2024, 1)
		assert.True(t, got.Income.IsZero())
	})
}

func TestDashboard(t *testing.T) {
	d := Dashboard(januaryLedger(), core.NewDate(2024, 1, 20))
	assert.Equal(t, "800.00", d.Balance.String())
	assert.Equal(t, "1000.00", d.MonthIncome.String())
	assert.Equal(t, "200.00", d.MonthExpense.String())
	assert.Equal(t, "800.00", d.Net().String())
}

func TestProject(t *testing.T) {
	txs := januaryLedger()
	start, end := core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)

	t.Run("confirmed only", func(t *testing.T) {
		p, err := Project(txs, nil, nil, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(0), p.StartingBalance.Cents)
		assert.Equal(t, int64(80000), p.EndingBalance.Cents)
		assert.Equal(t, int64(80000), p.NetChange.Cents)
		assert.Equal(t, 2, p.ConfirmedCount)
	})

	t.Run("scheduled expense inside the range is deducted", func(t *testing.T) {
		expenses := []core.ScheduledItem{scheduled(core.Expense, 30000, 2024, 1, 20)}
		p, err := Project(txs, expenses, nil, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), p.EndingBalance.Cents)
		assert.Equal(t, 1, p.ScheduledExpenseCount)
		assert.Equal(t, int64(30000), p.ScheduledExpenseTotal.Cents)
	})

	t.Run("scheduled items outside the range are ignored", func(t *testing.T) {
		expenses := []core.ScheduledItem{scheduled(core.Expense, 30000, 2024, 2, 1)}
		incomes := []core.ScheduledItem{
			scheduled(core.Income, 10000, 2023, 12, 31),
			scheduled(core.Income, 2500, 2024, 1, 31),
		}
		p, err := Project(txs, expenses, incomes, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(82500), p.EndingBalance.Cents)
		assert.Equal(t, 0, p.ScheduledExpenseCount)
		assert.Equal(t, 1, p.ScheduledIncomeCount)
	})

	t.Run("single day range", func(t *testing.T) {
		day := core.NewDate(2024, 1, 15)
		p, err := Project(txs, nil, nil, day, day)
		require.NoError(t, err)
		assert.Equal(t, int64(100000), p.StartingBalance.Cents)
		assert.Equal(t, int64(-20000), p.NetChange.Cents)
		assert.Equal(t, int64(80000), p.EndingBalance.Cents)
	})

	t.Run("starting balance carries earlier history", func(t *testing.T) {
		p, err := Project(txs, nil, nil, core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 29))
		require.NoError(t, err)
		assert.Equal(t, int64(80000), p.StartingBalance.Cents)
		assert.Equal(t, int64(75000), p.EndingBalance.Cents)
	})

	t.Run("inverted range is rejected", func(t *testing.T) {
		_, err := Project(txs, nil, nil, end, start)
		assert.ErrorIs(t, err, core.ErrInvalidRange)
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("zero dates are rejected", func(t *testing.T) {
		_, err := Project(txs, nil, nil, core.Date{}, end)
		assert.ErrorIs(t, err, core.ErrInvalidDate)
	})
}
