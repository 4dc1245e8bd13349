package services

import (
	"context"
	"log/slog"

	"github.com/gofrs/uuid/v5"

	"finledger/internal/amqp"
)

// EventPublisher delivers ledger change events to other processes.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *amqp.LedgerEvent) error
}

// ChangeListener is called in-process after a user's ledger changed.
type ChangeListener func(ctx context.Context, userID string)

// Notifier fans a change out to the broker and to local listeners. A zero
// Notifier does nothing.
type Notifier struct {
	publisher EventPublisher
	listeners []ChangeListener
}

func NewNotifier(publisher EventPublisher, listeners ...ChangeListener) *Notifier {
	return &Notifier{publisher: publisher, listeners: listeners}
}

// Listen registers another in-process listener.
func (n *Notifier) Listen(l ChangeListener) {
	n.listeners = append(n.listeners, l)
}

// Changed notifies local listeners and publishes the event. Publish failures
// are logged only: the change is already committed locally.
func (n *Notifier) Changed(ctx context.Context, event *amqp.LedgerEvent) {
	if n == nil {
		return
	}
	if event.ChangesLedger() {
		for _, l := range n.listeners {
			l(ctx, event.UserID)
		}
	}
	n.Publish(ctx, event)
}

func (n *Notifier) Publish(ctx context.Context, event *amqp.LedgerEvent) {
	if n == nil || n.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not available, skipping event", "type", event.Type)
		return
	}
	if err := n.publisher.PublishEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"type", event.Type,
			"user_id", event.UserID,
			"entity_id", event.EntityID,
			"error", err)
	}
}

func newID() string {
	return uuid.Must(uuid.NewV4()).String()
}
