package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"finledger/internal/amqp"
	"finledger/internal/core"
)

type ReminderStore interface {
	ListDueScheduled(ctx context.Context, until core.Date) ([]core.ScheduledItem, error)
	PurgeMaterializedScheduled(ctx context.Context) ([]core.ScheduledItem, error)
}

// ReminderProcessorConfig holds configuration for the reminder processor
type ReminderProcessorConfig struct {
	// Schedule is a standard five-field cron spec (default: every hour).
	Schedule string

	// Location is the time zone the schedule is evaluated in (default: UTC).
	Location *time.Location

	// RunOnStart triggers one pass as soon as the processor starts.
	RunOnStart bool
}

func DefaultReminderProcessorConfig() ReminderProcessorConfig {
	return ReminderProcessorConfig{
		Schedule:   "0 * * * *",
		Location:   time.UTC,
		RunOnStart: true,
	}
}

type ReminderResult struct {
	Checked  int
	Reminded int
	Purged   int64
}

// ReminderProcessor periodically publishes reminders for pending items that
// are overdue, due today or due soon, and removes pending items that are
// already in the ledger.
type ReminderProcessor struct {
	storage ReminderStore
	events  *Notifier
	config  ReminderProcessorConfig
	now     func() time.Time

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
}

func NewReminderProcessor(storage ReminderStore, events *Notifier, config ReminderProcessorConfig) *ReminderProcessor {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &ReminderProcessor{
		storage: storage,
		events:  events,
		config:  config,
		now:     time.Now,
	}
}

// Run performs one pass as of now.
func (p *ReminderProcessor) Run(ctx context.Context, now time.Time) (ReminderResult, error) {
	if p.storage == nil {
		return ReminderResult{}, fmt.Errorf("processor not properly initialized")
	}

	var result ReminderResult

	purged, err := p.storage.PurgeMaterializedScheduled(ctx)
	if err != nil {
		return result, fmt.Errorf("purge materialized items: %w", err)
	}
	result.Purged = int64(len(purged))
	if len(purged) > 0 {
		slog.WarnContext(ctx, "Removed pending items already in the ledger", "count", len(purged))
	}
	// Open sessions still hold the purged items and would count them twice.
	for _, item := range purged {
		p.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventScheduledDeleted, item.UserID, item.ID))
	}

	today := core.Today(now)
	items, err := p.storage.ListDueScheduled(ctx, today.AddDays(DueSoonWindow))
	if err != nil {
		return result, fmt.Errorf("list due scheduled items: %w", err)
	}
	result.Checked = len(items)

	for _, item := range items {
		status, days := ClassifyDue(item.DueDate, today)
		if !NeedsReminder(status) {
			continue
		}

		event := amqp.NewLedgerEvent(amqp.EventScheduledReminder, item.UserID, item.ID)
		event.Status = string(status)
		p.events.Publish(ctx, event)

		result.Reminded++
		slog.InfoContext(ctx, "Reminder sent for scheduled item",
			"item_id", item.ID,
			"user_id", item.UserID,
			"direction", item.Direction,
			"status", status,
			"days_until_due", days,
			"amount_cents", item.Amount.Cents)
	}

	slog.InfoContext(ctx, "Reminder pass complete",
		"checked", result.Checked,
		"reminded", result.Reminded,
		"purged", result.Purged,
		"date", today.String())

	return result, nil
}

// Start schedules Run on the configured cron spec. Returns an error if
// already running or if the spec is invalid.
func (p *ReminderProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("reminder processor is already running")
	}

	c := cron.New(cron.WithLocation(p.config.Location))
	if _, err := c.AddFunc(p.config.Schedule, func() { p.runOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", p.config.Schedule, err)
	}
	c.Start()

	p.cron = c
	p.running = true

	if p.config.RunOnStart {
		go p.runOnce(ctx)
	}

	slog.InfoContext(ctx, "Reminder processor started",
		"schedule", p.config.Schedule,
		"timezone", p.config.Location.String())
	return nil
}

func (p *ReminderProcessor) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := p.Run(ctx, p.now()); err != nil {
		slog.ErrorContext(ctx, "Reminder pass failed", "error", err)
	}
}

// Stop halts the schedule and waits for a running pass to finish.
func (p *ReminderProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c := p.cron
	p.running = false
	p.cron = nil
	p.mu.Unlock()

	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Reminder processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reminder processor stop timed out")
		return ctx.Err()
	}
}

func (p *ReminderProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
