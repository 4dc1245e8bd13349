// Package services provides business logic and orchestration services.
//
// Due status classification uses an ordered rule table: the first rule
// matching the number of days until the due date decides the status.

package services

import (
	"finledger/internal/core"
)

// DueSoonWindow is the number of days ahead within which a pending item is
// reported as due soon.
const DueSoonWindow = 3

// DueRule decides whether an item that is daysUntil days away has its status.
type DueRule interface {
	Matches(daysUntil int) bool
	Status() core.DueStatus
}

type OverdueRule struct{}

func (OverdueRule) Matches(daysUntil int) bool { return daysUntil < 0 }
func (OverdueRule) Status() core.DueStatus     { return core.StatusOverdue }

type DueTodayRule struct{}

func (DueTodayRule) Matches(daysUntil int) bool { return daysUntil == 0 }
func (DueTodayRule) Status() core.DueStatus     { return core.StatusDueToday }

// DueSoonRule matches items due within Window days (exclusive of today).
type DueSoonRule struct {
	Window int
}

func (r DueSoonRule) Matches(daysUntil int) bool { return daysUntil > 0 && daysUntil <= r.Window }
func (DueSoonRule) Status() core.DueStatus       { return core.StatusDueSoon }

var dueRules = []DueRule{
	OverdueRule{},
	DueTodayRule{},
	DueSoonRule{Window: DueSoonWindow},
}

// ClassifyDue derives the status of an item due on due, as seen on today, and
// returns it with the signed number of days until the due date.
func ClassifyDue(due, today core.Date) (core.DueStatus, int) {
	days := today.DaysUntil(due)
	for _, rule := range dueRules {
		if rule.Matches(days) {
			return rule.Status(), days
		}
	}
	return core.StatusScheduled, days
}

// NeedsReminder reports whether a status warrants notifying the user.
func NeedsReminder(status core.DueStatus) bool {
	return status != core.StatusScheduled
}

// View wraps an item with its derived status.
func View(item core.ScheduledItem, today core.Date) core.ScheduledView {
	status, days := ClassifyDue(item.DueDate, today)
	return core.ScheduledView{Item: item, Status: status, DaysUntilDue: days}
}
