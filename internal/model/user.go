package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 6
	MaxEmailLength    = 254
)

var (
	ErrUsernameTooShort = errors.New("username must be at least 3 characters")
	ErrUsernameTooLong  = errors.New("username must be at most 64 characters")
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	ErrInvalidEmail     = errors.New("please enter a valid email address")
)

// User represents an account in the credential store.
type User struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	Email        string    `db:"email"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// CredentialsRequest is the body of both register and login requests.
type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ProfileResponse is the public projection of a User.
type ProfileResponse struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// UpdateEmailRequest represents an e-mail change request.
type UpdateEmailRequest struct {
	Email string `json:"email"`
}

// UpdateEmailResponse confirms an e-mail change.
type UpdateEmailResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}

// NormalizeUsername trims surrounding whitespace; usernames are stored trimmed.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateUsername checks the length rules for an already normalized username.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength {
		return ErrUsernameTooShort
	}
	if n > MaxUsernameLength {
		return ErrUsernameTooLong
	}
	return nil
}

// ValidatePassword checks the minimum length of a plaintext password.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// ValidateEmail performs a shallow check: the address must contain an '@'.
func ValidateEmail(email string) error {
	if !strings.Contains(email, "@") || len(email) > MaxEmailLength {
		return ErrInvalidEmail
	}
	return nil
}

// Profile projects the user onto its public fields.
func (u *User) Profile() ProfileResponse {
	return ProfileResponse{
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}
