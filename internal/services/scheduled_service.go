package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/storage"
)

type ScheduledStore interface {
	CreateScheduled(ctx context.Context, s core.ScheduledItem) error
	ListScheduled(ctx context.Context, userID string, direction core.Direction) ([]core.ScheduledItem, error)
	DeleteScheduled(ctx context.Context, userID, id string) error
	ConfirmScheduled(ctx context.Context, userID, itemID, newID string, now time.Time) (storage.ConfirmResult, error)
}

// ScheduledService manages pending incomes and expenses until they are
// confirmed into the ledger or deleted.
type ScheduledService struct {
	storage ScheduledStore
	events  *Notifier
	now     func() time.Time

	confirms singleflight.Group
}

func NewScheduledService(storage ScheduledStore, events *Notifier) *ScheduledService {
	return &ScheduledService{
		storage: storage,
		events:  events,
		now:     time.Now,
	}
}

func (s *ScheduledService) Create(ctx context.Context, item core.ScheduledItem) (core.ScheduledItem, error) {
	item.Description = strings.TrimSpace(item.Description)
	if err := item.Validate(); err != nil {
		return core.ScheduledItem{}, err
	}

	item.ID = newID()
	item.Status = core.StatusPending
	item.CreatedAt = s.now().UTC()

	if err := s.storage.CreateScheduled(ctx, item); err != nil {
		return core.ScheduledItem{}, fmt.Errorf("save scheduled item: %w", err)
	}

	slog.InfoContext(ctx, "Scheduled item created",
		"id", item.ID,
		"user_id", item.UserID,
		"direction", item.Direction,
		"due_date", item.DueDate.String(),
		"amount_cents", item.Amount.Cents)
	s.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventScheduledCreated, item.UserID, item.ID))
	return item, nil
}

// List returns the user's pending items with their status as of today. An
// empty direction lists both sets.
func (s *ScheduledService) List(ctx context.Context, userID string, direction core.Direction, today core.Date) ([]core.ScheduledView, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	if direction != "" {
		if err := direction.Validate(); err != nil {
			return nil, err
		}
	}

	items, err := s.storage.ListScheduled(ctx, userID, direction)
	if err != nil {
		return nil, fmt.Errorf("list scheduled items: %w", err)
	}

	views := make([]core.ScheduledView, 0, len(items))
	for _, item := range items {
		views = append(views, View(item, today))
	}
	return views, nil
}

// Confirm materializes a pending item as a transaction dated on the day of
// now. Concurrent confirms of the same item share one database call; a
// repeated confirm returns the transaction created the first time with
// Replayed set.
func (s *ScheduledService) Confirm(ctx context.Context, userID, itemID string, now time.Time) (storage.ConfirmResult, error) {
	if strings.TrimSpace(userID) == "" {
		return storage.ConfirmResult{}, core.ErrEmptyUser
	}

	executed := false
	v, err, _ := s.confirms.Do(userID+"/"+itemID, func() (any, error) {
		executed = true
		res, err := s.storage.ConfirmScheduled(ctx, userID, itemID, newID(), now.UTC())
		if err != nil {
			return storage.ConfirmResult{}, err
		}
		if !res.Replayed {
			slog.InfoContext(ctx, "Scheduled item confirmed",
				"item_id", itemID,
				"user_id", userID,
				"transaction_id", res.Transaction.ID,
				"original_due_date", res.Transaction.OriginalDueDate.String())
			s.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventScheduledConfirmed, userID, itemID))
		}
		return res, nil
	})
	if err != nil {
		return storage.ConfirmResult{}, fmt.Errorf("confirm scheduled item: %w", err)
	}

	res := v.(storage.ConfirmResult)
	if !executed {
		res.Replayed = true
	}
	return res, nil
}

// Delete drops a pending item without touching the ledger.
func (s *ScheduledService) Delete(ctx context.Context, userID, itemID string) error {
	if err := s.storage.DeleteScheduled(ctx, userID, itemID); err != nil {
		return fmt.Errorf("delete scheduled item: %w", err)
	}
	slog.InfoContext(ctx, "Scheduled item deleted", "item_id", itemID, "user_id", userID)
	s.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventScheduledDeleted, userID, itemID))
	return nil
}
