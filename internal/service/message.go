package service

import (
	"context"

	"github.com/chatpool/chatpool-go/internal/model"
	"github.com/chatpool/chatpool-go/internal/repository"
)

// MessageService handles the shared chat feed.
type MessageService struct {
	messages repository.MessageStore
	limit    int
}

// NewMessageService creates a new MessageService returning at most limit
// messages from List.
func NewMessageService(messages repository.MessageStore, limit int) *MessageService {
	return &MessageService{messages: messages, limit: limit}
}

// Post appends a message authored by user.
func (s *MessageService) Post(ctx context.Context, user *model.User, text string) (model.Message, error) {
	if err := model.ValidateMessageText(text); err != nil {
		return model.Message{}, err
	}

	msg := model.Message{
		UserID:   user.ID,
		Nickname: user.Username,
		Text:     text,
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return model.Message{}, err
	}
	return msg, nil
}

// List returns the most recent messages in send order.
func (s *MessageService) List(ctx context.Context) ([]model.Message, error) {
	return s.messages.ListRecent(ctx, s.limit)
}
