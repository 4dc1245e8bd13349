package services

import (
	"context"
	"testing"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/core"
)

func TestDefaultReminderProcessorConfig(t *testing.T) {
	config := DefaultReminderProcessorConfig()

	if config.Schedule != "0 * * * *" {
		t.Errorf("expected hourly schedule, got %q", config.Schedule)
	}
	if config.Location != time.UTC {
		t.Errorf("expected UTC location, got %v", config.Location)
	}
	if !config.RunOnStart {
		t.Error("expected RunOnStart to default to true")
	}
}

func TestNewReminderProcessor_DefaultsLocation(t *testing.T) {
	processor := NewReminderProcessor(nil, nil, ReminderProcessorConfig{Schedule: "@daily"})

	if processor.config.Location != time.UTC {
		t.Errorf("nil location should default to UTC, got %v", processor.config.Location)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestReminderProcessor_RunUninitialized(t *testing.T) {
	processor := NewReminderProcessor(nil, nil, DefaultReminderProcessorConfig())

	if _, err := processor.Run(context.Background(), time.Now()); err == nil {
		t.Error("expected error when storage is nil")
	}
}

func TestReminderProcessor_StartTwice(t *testing.T) {
	config := DefaultReminderProcessorConfig()
	config.RunOnStart = false
	processor := NewReminderProcessor(newTestRepo(t), nil, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := processor.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if !processor.IsRunning() {
		t.Error("processor should be running after Start")
	}
	if err := processor.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}

	if err := processor.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

func TestReminderProcessor_InvalidSchedule(t *testing.T) {
	processor := NewReminderProcessor(nil, nil, ReminderProcessorConfig{Schedule: "every now and then"})

	if err := processor.Start(context.Background()); err == nil {
		t.Error("expected error for invalid cron spec")
	}
	if processor.IsRunning() {
		t.Error("processor should not be running after a failed Start")
	}
}

func TestReminderProcessor_StopNotRunning(t *testing.T) {
	processor := NewReminderProcessor(nil, nil, DefaultReminderProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func TestReminderProcessor_Run(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	items := []core.ScheduledItem{
		{ID: "overdue", DueDate: core.NewDate(2024, 1, 10)},
		{ID: "today", DueDate: core.NewDate(2024, 1, 15)},
		{ID: "soon", DueDate: core.NewDate(2024, 1, 18)},
		{ID: "later", DueDate: core.NewDate(2024, 1, 19)},
		{ID: "confirmed-elsewhere", DueDate: core.NewDate(2024, 1, 12)},
	}
	for _, item := range items {
		item.UserID = "u1"
		item.Description = "bill " + item.ID
		item.Amount = core.Money{Cents: 1000}
		item.Direction = core.Expense
		item.Status = core.StatusPending
		item.CreatedAt = now
		if err := repo.CreateScheduled(ctx, item); err != nil {
			t.Fatalf("create %s: %v", item.ID, err)
		}
	}

	leftover := core.Transaction{
		ID: "t1", UserID: "u1", Description: "bill", Amount: core.Money{Cents: 1000},
		Date: core.NewDate(2024, 1, 12), Type: core.Expense, CreatedBy: "u1",
		CreatedAt: now, UpdatedAt: now, ScheduledItemID: "confirmed-elsewhere",
	}
	if err := repo.CreateTransaction(ctx, leftover); err != nil {
		t.Fatalf("create transaction: %v", err)
	}

	pub := &recordingPublisher{}
	changes := &changeCounter{}
	processor := NewReminderProcessor(repo, NewNotifier(pub, changes.listener()), DefaultReminderProcessorConfig())

	result, err := processor.Run(ctx, now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Purged != 1 {
		t.Errorf("expected 1 purged item, got %d", result.Purged)
	}
	if result.Checked != 3 || result.Reminded != 3 {
		t.Errorf("expected 3 checked and reminded, got %+v", result)
	}

	statuses := map[string]string{}
	var deleted []string
	for _, e := range pub.events {
		switch e.Type {
		case amqp.EventScheduledReminder:
			statuses[e.EntityID] = e.Status
		case amqp.EventScheduledDeleted:
			deleted = append(deleted, e.EntityID)
		default:
			t.Errorf("unexpected event type %s", e.Type)
		}
	}
	if len(deleted) != 1 || deleted[0] != "confirmed-elsewhere" {
		t.Errorf("purged item should be announced as deleted, got %v", deleted)
	}
	if changes.count() != 1 {
		t.Errorf("expected 1 local change notification for the purge, got %d", changes.count())
	}
	want := map[string]string{
		"overdue": string(core.StatusOverdue),
		"today":   string(core.StatusDueToday),
		"soon":    string(core.StatusDueSoon),
	}
	for id, status := range want {
		if statuses[id] != status {
			t.Errorf("reminder for %s: got %q, want %q", id, statuses[id], status)
		}
	}
}
