package storage

import (
	"context"
	"fmt"

	"finledger/internal/core"
)

// AppendChatMessage stores one conversation turn and returns it with its id.
func (r *SQLiteRepository) AppendChatMessage(ctx context.Context, m core.ChatMessage) (core.ChatMessage, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO chat_messages (user_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`, m.UserID, string(m.Role), m.Content, formatTimestamp(m.CreatedAt))
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.ChatMessage{}, fmt.Errorf("chat message id: %w", err)
	}
	m.ID = id
	return m, nil
}

// ListChatMessages returns the user's most recent messages in chronological
// order. limit <= 0 returns everything.
func (r *SQLiteRepository) ListChatMessages(ctx context.Context, userID string, limit int) ([]core.ChatMessage, error) {
	query := `SELECT id, user_id, role, content, created_at FROM (
		SELECT id, user_id, role, content, created_at FROM chat_messages
		WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var out []core.ChatMessage
	for rows.Next() {
		var (
			m          core.ChatMessage
			role, when string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &when); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Role = core.ChatRole(role)
		m.CreatedAt = parseTimestamp(when)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return out, nil
}
