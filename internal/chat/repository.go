package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group-chat/internal/apperr"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AppendMessage is a single INSERT, so concurrent sends from different
// members never clobber each other.
func (r *Repository) AppendMessage(ctx context.Context, m *Message) error {
	query := `INSERT INTO messages (id, group_id, sender_id, sender_name, body, created_at)
              VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.GroupID, m.SenderID, m.SenderName, m.Body, m.CreatedAt)
	return err
}

func (r *Repository) GetMessage(ctx context.Context, groupID, messageID string) (*Message, error) {
	m := &Message{}
	query := `SELECT id, group_id, sender_id, sender_name, body, created_at
              FROM messages WHERE group_id = $1 AND id = $2`
	err := r.db.QueryRowContext(ctx, query, groupID, messageID).
		Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}

// DeleteMessage removes exactly the row with the given id; a single
// DELETE, so it cannot race a concurrent append or delete.
func (r *Repository) DeleteMessage(ctx context.Context, groupID, messageID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM messages WHERE group_id = $1 AND id = $2`, groupID, messageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}
	return nil
}

// ListMessages returns the log in insertion order.
func (r *Repository) ListMessages(ctx context.Context, groupID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, group_id, sender_id, sender_name, body, created_at
              FROM (
                  SELECT seq, id, group_id, sender_id, sender_name, body, created_at
                  FROM messages WHERE group_id = $1 ORDER BY seq DESC LIMIT $2
              ) latest ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, groupID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
