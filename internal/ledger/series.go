package ledger

import (
	"iter"
	"slices"

	"finledger/internal/core"
)

// DailySeries returns one running-balance point per calendar day in
// [start, end]. The sequence is lazy and can be ranged over any number of
// times; each pass replays the same snapshot from the beginning.
//
// The slices are copied, so later changes by the caller do not leak into a
// series that was already handed out.
func DailySeries(txs []core.Transaction, scheduledExpenses, scheduledIncomes []core.ScheduledItem, start, end core.Date) (iter.Seq[core.DayBalance], error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	txs = slices.Clone(txs)
	scheduledExpenses = slices.Clone(scheduledExpenses)
	scheduledIncomes = slices.Clone(scheduledIncomes)

	return func(yield func(core.DayBalance) bool) {
		opening := BalanceAsOf(txs, start.AddDays(-1))
		deltas := bucketDeltas(txs, scheduledExpenses, scheduledIncomes, start, end)

		running := opening.Cents
		for day := start; !day.After(end); day = day.AddDays(1) {
			delta := deltas[day.String()]
			running += delta
			point := core.DayBalance{
				Date:    day,
				Balance: core.Money{Cents: running},
				Delta:   core.Money{Cents: delta},
			}
			if !yield(point) {
				return
			}
		}
	}, nil
}

// bucketDeltas groups every in-range signed amount by calendar day.
func bucketDeltas(txs []core.Transaction, scheduledExpenses, scheduledIncomes []core.ScheduledItem, start, end core.Date) map[string]int64 {
	deltas := make(map[string]int64)
	for _, tx := range txs {
		if tx.Date.Within(start, end) {
			deltas[tx.Date.String()] += tx.Signed()
		}
	}
	for _, item := range scheduledIncomes {
		if item.DueDate.Within(start, end) {
			deltas[item.DueDate.String()] += item.Amount.Cents
		}
	}
	for _, item := range scheduledExpenses {
		if item.DueDate.Within(start, end) {
			deltas[item.DueDate.String()] -= item.Amount.Cents
		}
	}
	return deltas
}
