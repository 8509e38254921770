package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chatpool/chatpool-go/internal/crypto"
	"github.com/chatpool/chatpool-go/internal/model"
	"github.com/chatpool/chatpool-go/internal/repository"
)

// LoginRequiredMessage is the body of every 401 written by the gate.
const LoginRequiredMessage = "please log in"

type contextKey string

const userKey contextKey = "user"

// Reason explains why the gate rejected a request.
type Reason string

const (
	ReasonMissingHeader   Reason = "missing authorization header"
	ReasonMalformedHeader Reason = "malformed authorization header"
	ReasonInvalidToken    Reason = "invalid token"
	ReasonExpiredToken    Reason = "expired token"
	ReasonUnknownUser     Reason = "unknown user"
	ReasonLookupFailed    Reason = "user lookup failed"
)

// Decision is the outcome of Authorize: exactly one of User and Reason is set.
type Decision struct {
	User   *model.User
	Reason Reason
	// Err carries the backend error for ReasonLookupFailed.
	Err error
}

// Authorized reports whether the request may proceed.
func (d Decision) Authorized() bool {
	return d.User != nil
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserLookup resolves a user id to the current user record.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Gate authorizes requests carrying a bearer token.
type Gate struct {
	tokens TokenVerifier
	users  UserLookup
}

// NewGate creates a new Gate.
func NewGate(tokens TokenVerifier, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authorize checks the Authorization header of r and loads its user. The
// user is looked up on every call so deleted accounts lose access at once.
func (g *Gate) Authorize(r *http.Request) Decision {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Decision{Reason: ReasonMissingHeader}
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.ContainsRune(token, ' ') {
		return Decision{Reason: ReasonMalformedHeader}
	}

	userID, err := g.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return Decision{Reason: ReasonExpiredToken}
		}
		return Decision{Reason: ReasonInvalidToken}
	}

	user, err := g.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return Decision{Reason: ReasonUnknownUser}
		}
		return Decision{Reason: ReasonLookupFailed, Err: err}
	}
	return Decision{User: user}
}

// Middleware rejects unauthorized requests and otherwise stores the user in
// the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Authorize(r)
		switch {
		case d.Authorized():
			ctx := context.WithValue(r.Context(), userKey, d.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		case d.Reason == ReasonLookupFailed:
			slog.Error("auth gate user lookup", "error", d.Err, "path", r.URL.Path)
			writeJSONError(w, http.StatusInternalServerError, "internal server error")
		default:
			slog.Debug("request rejected", "reason", string(d.Reason), "path", r.URL.Path)
			writeJSONError(w, http.StatusUnauthorized, LoginRequiredMessage)
		}
	})
}

// UserFromContext returns the user attached by Gate.Middleware.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
