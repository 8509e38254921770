package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/chatpool/chatpool-go/internal/model"
)

const userColumns = `id, username, password_hash, email, created_at, updated_at`

// UserRepository is the SQL implementation of UserStore.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user, assigning its ID and timestamps.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	id, err := newID()
	if err != nil {
		return err
	}
	ts := now()

	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.ExecContext(ctx, query, id, user.Username, user.PasswordHash, user.Email, ts, ts); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("creating user: %w", err)
	}

	user.ID = id
	user.CreatedAt = ts
	user.UpdatedAt = ts
	return nil
}

// FindByUsername retrieves a user by username; a missing user is (nil, nil).
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ?`)

	user := &model.User{}
	if err := r.db.GetContext(ctx, user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	user := &model.User{}
	if err := r.db.GetContext(ctx, user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

// Save persists the user's email. The password hash is never written here.
func (r *UserRepository) Save(ctx context.Context, user *model.User) error {
	ts := now()
	query := r.db.Rebind(`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`)
	if err := r.execOne(ctx, query, user.Email, ts, user.ID); err != nil {
		return fmt.Errorf("saving user: %w", err)
	}
	user.UpdatedAt = ts
	return nil
}

// UpdatePasswordHash replaces the stored hash of a user.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	query := r.db.Rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`)
	if err := r.execOne(ctx, query, hash, now(), id); err != nil {
		return fmt.Errorf("updating password hash: %w", err)
	}
	return nil
}

// Delete removes a user. Messages keep their weak reference.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM users WHERE id = ?`)
	if err := r.execOne(ctx, query, id); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

// execOne runs a statement that must touch exactly one existing row.
func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isUniqueViolation recognizes unique-key violations from every supported driver.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
