package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chatpool/chatpool-go/internal/model"
	"github.com/chatpool/chatpool-go/internal/repository"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("username or password incorrect")
)

// EmailUpdatedMessage is the confirmation returned by UpdateEmail.
const EmailUpdatedMessage = "email updated"

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) bool
}

// TokenIssuer issues bearer tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthService handles account business logic.
type AuthService struct {
	users  repository.UserStore
	hasher PasswordHasher
	tokens TokenIssuer

	// dummyHash is verified against when the user does not exist, so a login
	// for an unknown name costs about as much as a wrong password.
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(users repository.UserStore, hasher PasswordHasher, tokens TokenIssuer) (*AuthService, error) {
	dummy, err := hasher.Hash("chatpool-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
	}, nil
}

// Register creates a new account and returns a token for it.
func (s *AuthService) Register(ctx context.Context, req model.CredentialsRequest) (model.TokenResponse, error) {
	user, err := s.CreateAccount(ctx, req.Username, req.Password, "")
	if err != nil {
		return model.TokenResponse{}, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("issuing token: %w", err)
	}
	return model.TokenResponse{Token: token}, nil
}

// CreateAccount validates the input and stores a new user. email may be
// empty.
func (s *AuthService) CreateAccount(ctx context.Context, username, password, email string) (*model.User, error) {
	username = model.NormalizeUsername(username)
	if err := model.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, err
	}
	if email != "" {
		if err := model.ValidateEmail(email); err != nil {
			return nil, err
		}
	}

	existing, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		Email:        email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The pre-check can lose a race; the store has the final word.
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	slog.Info("account created", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login checks the credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, req model.CredentialsRequest) (model.TokenResponse, error) {
	username := model.NormalizeUsername(req.Username)

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return model.TokenResponse{}, err
	}
	if user == nil {
		_, _ = s.hasher.Verify(req.Password, s.dummyHash)
		return model.TokenResponse{}, ErrInvalidCredentials
	}

	match, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("verifying password: %w", err)
	}
	if !match {
		return model.TokenResponse{}, ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return model.TokenResponse{}, fmt.Errorf("issuing token: %w", err)
	}
	return model.TokenResponse{Token: token}, nil
}

// upgradeHash replaces a legacy hash. Failure does not fail the login.
func (s *AuthService) upgradeHash(ctx context.Context, user *model.User, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		slog.Error("rehashing legacy password", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		slog.Error("storing upgraded password hash", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	slog.Info("upgraded legacy password hash", "user_id", user.ID)
}

// Profile returns the public view of user.
func (s *AuthService) Profile(user *model.User) model.ProfileResponse {
	return user.Profile()
}

// UpdateEmail validates and persists a new e-mail address. On failure user
// is left untouched.
func (s *AuthService) UpdateEmail(ctx context.Context, user *model.User, email string) (model.UpdateEmailResponse, error) {
	if err := model.ValidateEmail(email); err != nil {
		return model.UpdateEmailResponse{}, err
	}

	updated := *user
	updated.Email = email
	if err := s.users.Save(ctx, &updated); err != nil {
		return model.UpdateEmailResponse{}, fmt.Errorf("saving email: %w", err)
	}
	*user = updated

	return model.UpdateEmailResponse{Message: EmailUpdatedMessage, Email: user.Email}, nil
}

// DeleteAccount removes the named account. Tokens already issued for it stop
// working because the gate looks the user up on every request.
func (s *AuthService) DeleteAccount(ctx context.Context, username string) error {
	user, err := s.users.FindByUsername(ctx, model.NormalizeUsername(username))
	if err != nil {
		return err
	}
	if user == nil {
		return repository.ErrUserNotFound
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	slog.Info("account deleted", "user_id", user.ID, "username", user.Username)
	return nil
}
