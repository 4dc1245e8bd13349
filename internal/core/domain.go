package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

const (
	RoleUser  ChatRole = "user"
	RoleModel ChatRole = "model"
)

const (
	StatusPending ScheduledStatus = "pending"
)

const maxDescriptionLen = 200

type (
	// Direction tells whether an amount flows in or out of the ledger.
	Direction string

	ScheduledStatus string

	ChatRole string

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID          string
		UserID      string
		Description string
		Amount      Money
		Date        Date
		Type        Direction
		CreatedBy   string
		CreatedAt   time.Time
		UpdatedAt   time.Time

		// Set only when the transaction was materialized from a scheduled item.
		OriginalDueDate *Date
		ScheduledItemID string
	}

	ScheduledItem struct {
		ID          string
		UserID      string
		Description string
		Amount      Money
		DueDate     Date
		Direction   Direction
		Status      ScheduledStatus
		CreatedAt   time.Time
	}

	ChatMessage struct {
		ID        int64
		UserID    string
		Role      ChatRole
		Content   string
		CreatedAt time.Time
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidRange     = errors.New("start date is after end date")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrEmptyUser        = errors.New("missing user id")
	ErrEmptyPrompt      = errors.New("empty prompt")
)

var validationErrors = []error{
	ErrInvalidDate,
	ErrInvalidMonth,
	ErrInvalidAmount,
	ErrInvalidType,
	ErrInvalidRange,
	ErrEmptyDescription,
	ErrDescriptionLong,
	ErrEmptyUser,
	ErrEmptyPrompt,
}

// IsValidationError reports whether err was caused by rejected input rather
// than a storage or network failure.
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (d Direction) Validate() error {
	switch d {
	case Income, Expense:
		return nil
	default:
		return ErrInvalidType
	}
}

// Sign returns +1 for income and -1 for expense.
func (d Direction) Sign() int64 {
	if d == Income {
		return 1
	}
	return -1
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	return nil
}

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() int64 {
	return t.Type.Sign() * t.Amount.Cents
}

// FromScheduled reports whether the transaction was created by confirming a
// scheduled item.
func (t Transaction) FromScheduled() bool {
	return t.ScheduledItemID != ""
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return t.Type.Validate()
}

// Signed returns the amount with the sign implied by the item's direction.
func (s ScheduledItem) Signed() int64 {
	return s.Direction.Sign() * s.Amount.Cents
}

func (s ScheduledItem) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if err := s.DueDate.Validate(); err != nil {
		return err
	}
	if err := validateDescription(s.Description); err != nil {
		return err
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	return s.Direction.Validate()
}

// Materialize builds the ledger transaction recorded when the item is
// confirmed on the given day. The original due date is kept for audit.
func (s ScheduledItem) Materialize(id string, today Date, now time.Time) Transaction {
	due := s.DueDate
	return Transaction{
		ID:              id,
		UserID:          s.UserID,
		Description:     s.Description,
		Amount:          s.Amount,
		Date:            today,
		Type:            s.Direction,
		CreatedBy:       s.UserID,
		CreatedAt:       now,
		UpdatedAt:       now,
		OriginalDueDate: &due,
		ScheduledItemID: s.ID,
	}
}
