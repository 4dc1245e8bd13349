package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finledger/internal/amqp"
	"finledger/internal/core"
)

type TransactionStore interface {
	CreateTransaction(ctx context.Context, t core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
}

// TransactionService validates and records confirmed ledger entries.
type TransactionService struct {
	storage TransactionStore
	events  *Notifier
	now     func() time.Time
}

func NewTransactionService(storage TransactionStore, events *Notifier) *TransactionService {
	return &TransactionService{
		storage: storage,
		events:  events,
		now:     time.Now,
	}
}

// Create records t for its user. Audit fields and the id are assigned here;
// a scheduled back-reference can only be set by confirming an item.
func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Description = strings.TrimSpace(t.Description)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	now := s.now().UTC()
	t.ID = newID()
	t.CreatedBy = t.UserID
	t.CreatedAt = now
	t.UpdatedAt = now
	t.OriginalDueDate = nil
	t.ScheduledItemID = ""

	if err := s.storage.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID,
		"user_id", t.UserID,
		"type", t.Type,
		"amount_cents", t.Amount.Cents)
	s.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventTransactionCreated, t.UserID, t.ID))
	return t, nil
}

// Update replaces description, amount, date and type of an existing entry.
func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.Description = strings.TrimSpace(t.Description)
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	existing, err := s.storage.GetTransaction(ctx, t.UserID, t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}

	existing.Description = t.Description
	existing.Amount = t.Amount
	existing.Date = t.Date
	existing.Type = t.Type
	existing.UpdatedAt = s.now().UTC()

	if err := s.storage.UpdateTransaction(ctx, existing); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	s.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventTransactionUpdated, existing.UserID, existing.ID))
	return existing, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.storage.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	s.events.Changed(ctx, amqp.NewLedgerEvent(amqp.EventTransactionDeleted, userID, id))
	return nil
}

func (s *TransactionService) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrEmptyUser
	}
	txs, err := s.storage.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
