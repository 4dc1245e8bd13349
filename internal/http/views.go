package http

import (
	"time"

	"finledger/internal/core"
)

type transactionView struct {
	ID              string         `json:"id"`
	Description     string         `json:"description"`
	Amount          core.Money     `json:"amount"`
	Date            core.Date      `json:"date"`
	Type            core.Direction `json:"type"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	OriginalDueDate *core.Date     `json:"original_due_date,omitempty"`
	ScheduledItemID string         `json:"scheduled_item_id,omitempty"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:              t.ID,
		Description:     t.Description,
		Amount:          t.Amount,
		Date:            t.Date,
		Type:            t.Type,
		CreatedBy:       t.CreatedBy,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		OriginalDueDate: t.OriginalDueDate,
		ScheduledItemID: t.ScheduledItemID,
	}
}

func newTransactionViews(txs []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t))
	}
	return out
}

type scheduledView struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	Amount       core.Money     `json:"amount"`
	DueDate      core.Date      `json:"due_date"`
	Direction    core.Direction `json:"direction"`
	Status       core.DueStatus `json:"status"`
	DaysUntilDue int            `json:"days_until_due"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newScheduledView(v core.ScheduledView) scheduledView {
	return scheduledView{
		ID:           v.Item.ID,
		Description:  v.Item.Description,
		Amount:       v.Item.Amount,
		DueDate:      v.Item.DueDate,
		Direction:    v.Item.Direction,
		Status:       v.Status,
		DaysUntilDue: v.DaysUntilDue,
		CreatedAt:    v.Item.CreatedAt,
	}
}

type confirmView struct {
	Transaction transactionView `json:"transaction"`
	Replayed    bool            `json:"replayed"`
}

type dashboardView struct {
	AsOf         core.Date  `json:"as_of"`
	Balance      core.Money `json:"balance"`
	MonthIncome  core.Money `json:"month_income"`
	MonthExpense core.Money `json:"month_expense"`
	Net          core.Money `json:"net"`
}

func newDashboardView(d core.Dashboard) dashboardView {
	return dashboardView{
		AsOf:         d.AsOf,
		Balance:      d.Balance,
		MonthIncome:  d.MonthIncome,
		MonthExpense: d.MonthExpense,
		Net:          d.Net(),
	}
}

type projectionView struct {
	Start                 core.Date  `json:"start"`
	End                   core.Date  `json:"end"`
	StartingBalance       core.Money `json:"starting_balance"`
	EndingBalance         core.Money `json:"ending_balance"`
	NetChange             core.Money `json:"net_change"`
	ConfirmedCount        int        `json:"confirmed_count"`
	ScheduledIncomeCount  int        `json:"scheduled_income_count"`
	ScheduledExpenseCount int        `json:"scheduled_expense_count"`
	ScheduledIncomeTotal  core.Money `json:"scheduled_income_total"`
	ScheduledExpenseTotal core.Money `json:"scheduled_expense_total"`
}

func newProjectionView(p core.Projection) projectionView {
	return projectionView(p)
}

type dayBalanceView struct {
	Date    core.Date  `json:"date"`
	Balance core.Money `json:"balance"`
	Delta   core.Money `json:"delta"`
}

type categoryStatView struct {
	Name    string     `json:"name"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
	Net     core.Money `json:"net"`
	Count   int        `json:"count"`
}

func newCategoryStatViews(stats []core.CategoryStat) []categoryStatView {
	out := make([]categoryStatView, 0, len(stats))
	for _, s := range stats {
		out = append(out, categoryStatView{
			Name:    s.Name,
			Income:  s.Income,
			Expense: s.Expense,
			Net:     s.Net(),
			Count:   s.Count,
		})
	}
	return out
}

type statsView struct {
	Year         int                `json:"year"`
	Month        int                `json:"month"`
	Category     string             `json:"category,omitempty"`
	Categories   []categoryStatView `json:"categories"`
	TopExpenses  []categoryStatView `json:"top_expenses"`
	TopIncomes   []categoryStatView `json:"top_incomes"`
	TotalIncome  core.Money         `json:"total_income"`
	TotalExpense core.Money         `json:"total_expense"`
	Net          core.Money         `json:"net"`
	TotalCount   int                `json:"total_count"`
}

func newStatsView(r core.CategoryReport) statsView {
	return statsView{
		Year:         r.Year,
		Month:        r.Month,
		Category:     r.Category,
		Categories:   newCategoryStatViews(r.Categories),
		TopExpenses:  newCategoryStatViews(r.TopExpenses),
		TopIncomes:   newCategoryStatViews(r.TopIncomes),
		TotalIncome:  r.TotalIncome,
		TotalExpense: r.TotalExpense,
		Net:          r.Net(),
		TotalCount:   r.TotalCount,
	}
}

type chatMessageView struct {
	ID        int64         `json:"id"`
	Role      core.ChatRole `json:"role"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

func newChatMessageView(m core.ChatMessage) chatMessageView {
	return chatMessageView{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

type transactionRequest struct {
	Description string         `json:"description"`
	Amount      core.Money     `json:"amount"`
	Date        core.Date      `json:"date"`
	Type        core.Direction `json:"type"`
}

type scheduledRequest struct {
	Description string         `json:"description"`
	Amount      core.Money     `json:"amount"`
	DueDate     core.Date      `json:"due_date"`
	Direction   core.Direction `json:"direction"`
}

type chatRequest struct {
	Prompt string `json:"prompt"`
}
