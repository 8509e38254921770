package repository

import (
	"context"
	"sync"

	"github.com/chatpool/chatpool-go/internal/model"
)

// MemoryUserRepository is a process-local UserStore.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	byID     map[string]model.User
	idByName map[string]string
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:     make(map[string]model.User),
		idByName: make(map[string]string),
	}
}

// Create inserts a new user, assigning its ID and timestamps.
func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	id, err := newID()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.idByName[user.Username]; exists {
		return ErrDuplicateUsername
	}

	ts := now()
	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	r.byID[id] = *user
	r.idByName[user.Username] = id
	return nil
}

// FindByUsername retrieves a copy of a user by username; a missing user is (nil, nil).
func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.idByName[username]
	if !ok {
		return nil, nil
	}
	u := r.byID[id]
	return &u, nil
}

// GetByID retrieves a copy of a user by ID.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// Save persists the user's email. The password hash is never written here.
func (r *MemoryUserRepository) Save(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	stored.Email = user.Email
	stored.UpdatedAt = now()
	r.byID[user.ID] = stored
	user.UpdatedAt = stored.UpdatedAt
	return nil
}

// UpdatePasswordHash replaces the stored hash of a user.
func (r *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	stored.PasswordHash = hash
	stored.UpdatedAt = now()
	r.byID[id] = stored
	return nil
}

// Delete removes a user.
func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(r.byID, id)
	delete(r.idByName, stored.Username)
	return nil
}

// Count returns the number of stored users.
func (r *MemoryUserRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// MemoryMessageRepository is a process-local MessageStore.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages []model.Message
}

// NewMemoryMessageRepository creates an empty MemoryMessageRepository.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{}
}

// Create appends a message, assigning its ID and timestamp.
func (r *MemoryMessageRepository) Create(_ context.Context, msg *model.Message) error {
	id, err := newID()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg.ID = id
	msg.Timestamp = now()
	r.messages = append(r.messages, *msg)
	return nil
}

// ListRecent returns a copy of the newest limit messages in send order.
func (r *MemoryMessageRepository) ListRecent(_ context.Context, limit int) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := 0
	if limit >= 0 && len(r.messages) > limit {
		start = len(r.messages) - limit
	}
	out := make([]model.Message, len(r.messages)-start)
	copy(out, r.messages[start:])
	return out, nil
}
