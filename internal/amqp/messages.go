package amqp

import (
	"encoding/json"
	"time"
)

// Event types published when a user's ledger changes.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventScheduledCreated   = "scheduled.created"
	EventScheduledConfirmed = "scheduled.confirmed"
	EventScheduledDeleted   = "scheduled.deleted"
	EventScheduledReminder  = "scheduled.reminder"
)

// LedgerEvent is a lightweight change notification. It carries ids only;
// consumers reload whatever snapshot they hold for the user.
type LedgerEvent struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	EntityID  string    `json:"entity_id"`
	Status    string    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerEvent(eventType, userID, entityID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      eventType,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

// ChangesLedger reports whether consumers holding snapshots must reload.
// Reminders leave the data untouched.
func (m *LedgerEvent) ChangesLedger() bool {
	return m.Type != EventScheduledReminder
}

func (m *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var msg LedgerEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
