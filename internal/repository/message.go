package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chatpool/chatpool-go/internal/model"
)

// MessageRepository is the SQL implementation of MessageStore.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create appends a message, assigning its ID and timestamp.
func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) error {
	id, err := newID()
	if err != nil {
		return err
	}
	ts := now()

	query := r.db.Rebind(`INSERT INTO messages (id, user_id, nickname, text, sent_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, id, msg.UserID, msg.Nickname, msg.Text, ts); err != nil {
		return fmt.Errorf("creating message: %w", err)
	}

	msg.ID = id
	msg.Timestamp = ts
	return nil
}

// ListRecent returns the newest limit messages in send order.
func (r *MessageRepository) ListRecent(ctx context.Context, limit int) ([]model.Message, error) {
	query := r.db.Rebind(`SELECT id, user_id, nickname, text, sent_at FROM messages
		ORDER BY sent_at DESC, id DESC LIMIT ?`)

	msgs := []model.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, limit); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	reverse(msgs)
	return msgs, nil
}
