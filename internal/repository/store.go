package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chatpool/chatpool-go/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

// UserStore is the credential store. Only the account service and the auth
// gate talk to it.
type UserStore interface {
	// FindByUsername returns (nil, nil) when no such user exists.
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	// GetByID returns ErrUserNotFound when no such user exists.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// Create assigns ID and timestamps and inserts the user. It returns
	// ErrDuplicateUsername if the username is taken; the check and the insert
	// are a single atomic operation.
	Create(ctx context.Context, user *model.User) error
	// Save persists the mutable fields (email) of an existing user.
	Save(ctx context.Context, user *model.User) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	Delete(ctx context.Context, id string) error
}

// MessageStore is the append-only chat feed.
type MessageStore interface {
	// Create assigns ID and timestamp and appends the message.
	Create(ctx context.Context, msg *model.Message) error
	// ListRecent returns at most limit of the newest messages, oldest first.
	ListRecent(ctx context.Context, limit int) ([]model.Message, error)
}

// newID returns a time-ordered UUIDv7 so ids sort in creation order.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating id: %w", err)
	}
	return id.String(), nil
}

func now() time.Time {
	return time.Now().UTC()
}

// reverse flips newest-first query results into send order.
func reverse(msgs []model.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
