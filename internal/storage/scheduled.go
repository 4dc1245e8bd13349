package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finledger/internal/core"
)

const scheduledColumns = `id, user_id, direction, description, amount_cents, due_date, status, created_at`

func scanScheduled(row rowScanner) (core.ScheduledItem, error) {
	var (
		s                         core.ScheduledItem
		direction, due, status, c string
	)
	if err := row.Scan(&s.ID, &s.UserID, &direction, &s.Description, &s.Amount.Cents, &due, &status, &c); err != nil {
		return core.ScheduledItem{}, err
	}
	d, err := core.ParseDate(due)
	if err != nil {
		return core.ScheduledItem{}, fmt.Errorf("scheduled item %s: %w", s.ID, err)
	}
	s.DueDate = d
	s.Direction = core.Direction(direction)
	s.Status = core.ScheduledStatus(status)
	s.CreatedAt = parseTimestamp(c)
	return s, nil
}

func (r *SQLiteRepository) CreateScheduled(ctx context.Context, s core.ScheduledItem) error {
	status := s.Status
	if status == "" {
		status = core.StatusPending
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO scheduled_items (`+scheduledColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, string(s.Direction), s.Description, s.Amount.Cents, s.DueDate.String(),
		string(status), formatTimestamp(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert scheduled item: %w", err)
	}
	return nil
}

// ListScheduled returns the user's pending items ordered by due date. An
// empty direction returns both sets.
func (r *SQLiteRepository) ListScheduled(ctx context.Context, userID string, direction core.Direction) ([]core.ScheduledItem, error) {
	query := `SELECT ` + scheduledColumns + ` FROM scheduled_items WHERE user_id = ?`
	args := []any{userID}
	if direction != "" {
		query += ` AND direction = ?`
		args = append(args, string(direction))
	}
	query += ` ORDER BY due_date, id`
	return r.queryScheduled(ctx, r.db, query, args...)
}

// ListDueScheduled returns every user's pending items due on or before
// until.
func (r *SQLiteRepository) ListDueScheduled(ctx context.Context, until core.Date) ([]core.ScheduledItem, error) {
	return r.queryScheduled(ctx, r.db, `SELECT `+scheduledColumns+`
		FROM scheduled_items WHERE due_date <= ?
		ORDER BY user_id, due_date, id`, until.String())
}

func (r *SQLiteRepository) queryScheduled(ctx context.Context, q queryer, query string, args ...any) ([]core.ScheduledItem, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled items: %w", err)
	}
	defer rows.Close()

	var out []core.ScheduledItem
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled item: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled items: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteScheduled(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete scheduled item: %w", err)
	}
	return expectAffected(res, ErrScheduledNotFound)
}

// ConfirmResult is the outcome of ConfirmScheduled.
type ConfirmResult struct {
	Transaction core.Transaction
	// Replayed is true when the item had already been confirmed and the
	// existing transaction was returned instead of creating a new one.
	Replayed bool
}

// ConfirmScheduled materializes a pending item into the ledger and removes it
// from the pending set in a single database transaction. Confirming an item
// that was already confirmed returns the transaction created the first time.
func (r *SQLiteRepository) ConfirmScheduled(ctx context.Context, userID, itemID, newID string, now time.Time) (ConfirmResult, error) {
	var result ConfirmResult
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := scanTransaction(tx.QueryRowContext(ctx, `SELECT `+transactionColumns+`
			FROM transactions WHERE scheduled_item_id = ? AND user_id = ?`, itemID, userID))
		switch {
		case err == nil:
			// Already materialized. Drop a leftover pending row, if any.
			if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_items WHERE id = ? AND user_id = ?`, itemID, userID); err != nil {
				return fmt.Errorf("remove confirmed scheduled item: %w", err)
			}
			result = ConfirmResult{Transaction: existing, Replayed: true}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check prior confirmation: %w", err)
		}

		item, err := scanScheduled(tx.QueryRowContext(ctx, `SELECT `+scheduledColumns+`
			FROM scheduled_items WHERE id = ? AND user_id = ?`, itemID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrScheduledNotFound
		}
		if err != nil {
			return fmt.Errorf("load scheduled item: %w", err)
		}

		t := item.Materialize(newID, core.Today(now), now)
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM scheduled_items WHERE id = ?`, item.ID); err != nil {
			return fmt.Errorf("remove scheduled item: %w", err)
		}
		result = ConfirmResult{Transaction: t}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	slog.DebugContext(ctx, "Scheduled item confirmed",
		"item_id", itemID,
		"transaction_id", result.Transaction.ID,
		"replayed", result.Replayed)
	return result, nil
}

// PurgeMaterializedScheduled deletes pending items that a ledger transaction
// already references and returns them. It repairs state left by writers that
// did not confirm atomically.
func (r *SQLiteRepository) PurgeMaterializedScheduled(ctx context.Context) ([]core.ScheduledItem, error) {
	purged, err := r.queryScheduled(ctx, r.db, `DELETE FROM scheduled_items
		WHERE id IN (SELECT scheduled_item_id FROM transactions WHERE scheduled_item_id IS NOT NULL)
		RETURNING `+scheduledColumns)
	if err != nil {
		return nil, fmt.Errorf("purge materialized scheduled items: %w", err)
	}
	return purged, nil
}
