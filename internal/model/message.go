package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxMessageLength bounds the text of a single chat message, in characters.
const MaxMessageLength = 2000

var (
	ErrEmptyMessage   = errors.New("message text must not be empty")
	ErrMessageTooLong = errors.New("message text must be at most 2000 characters")
)

// Message is a single post in the shared chat feed. UserID is a weak
// reference: deleting the author leaves the message in place.
type Message struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Nickname  string    `db:"nickname" json:"nickname"`
	Text      string    `db:"text" json:"text"`
	Timestamp time.Time `db:"sent_at" json:"timestamp"`
}

// PostMessageRequest represents a new chat message.
type PostMessageRequest struct {
	Text string `json:"text"`
}

// ValidateMessageText rejects blank and oversized messages.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
