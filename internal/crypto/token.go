package crypto

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "chatpool"
	tokenAudience = "chatpool-api"

	// MinSecretLength is the minimum accepted HMAC signing secret, in bytes.
	MinSecretLength = 32
)

var (
	ErrTokenMalformed = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
	ErrWeakSecret     = fmt.Errorf("token signing secret must be at least %d bytes", MinSecretLength)
	ErrEmptySubject   = errors.New("token subject must not be empty")
)

// Claims represents the JWT claims carried by a chatpool bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// TokenIssuer mints and verifies HS256 bearer tokens with a process-wide
// secret. The secret is fixed at construction.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer. The secret must be at least
// MinSecretLength bytes.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, errors.New("token lifetime must be positive")
	}
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue creates a signed token for the given user.
func (ti *TokenIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptySubject
	}

	now := ti.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ti.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ti.secret)
}

// Verify checks the signature and expiry of tokenString and returns the user
// ID it was issued for. ErrTokenExpired is only returned for tokens whose
// signature is valid; every other failure is ErrTokenMalformed.
func (ti *TokenIssuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenMalformed
	}

	if !token.Valid || claims.UserID == "" || claims.Subject != claims.UserID {
		return "", ErrTokenMalformed
	}

	return claims.UserID, nil
}
