package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatpool/chatpool-go/internal/crypto"
	"github.com/chatpool/chatpool-go/internal/middleware"
	"github.com/chatpool/chatpool-go/internal/model"
	"github.com/chatpool/chatpool-go/internal/repository"
	"github.com/chatpool/chatpool-go/internal/service"
)

const testSecret = "handler-test-secret-0123456789abcdef"

type testServer struct {
	handler http.Handler
	stores  *repository.Stores
	auth    *service.AuthService
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()

	stores := repository.NewMemoryStores()
	hasher, err := crypto.NewPasswordHasher(crypto.HashParams{Memory: 64, Iterations: 1, Parallelism: 1})
	require.NoError(t, err)
	tokens, err := crypto.NewTokenIssuer(testSecret, 24*time.Hour)
	require.NoError(t, err)
	auth, err := service.NewAuthService(stores.Users, hasher, tokens)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewRouter(RouterConfig{
		Auth:           auth,
		Messages:       service.NewMessageService(stores.Messages, 200),
		Gate:           middleware.NewGate(tokens, stores.Users),
		RateLimiter:    middleware.NewRateLimiter(ctx, rps, burst),
		Health:         stores,
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &testServer{handler: h, stores: stores, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, username, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", model.CredentialsRequest{Username: username, Password: password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp model.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body["message"]
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, 100, 100)

	s.register(t, "alice", "secret1")

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", model.CredentialsRequest{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = s.do(t, http.MethodGet, "/api/auth/user", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
}

func TestRegister_Errors(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.register(t, "bob", "secret1")

	tests := []struct {
		name    string
		body    any
		want    int
		message string
	}{
		{"duplicate", model.CredentialsRequest{Username: "bob", Password: "another"}, http.StatusBadRequest, "username already exists"},
		{"short username", model.CredentialsRequest{Username: "bo", Password: "secret1"}, http.StatusBadRequest, model.ErrUsernameTooShort.Error()},
		{"short password", model.CredentialsRequest{Username: "carol", Password: "123"}, http.StatusBadRequest, model.ErrPasswordTooShort.Error()},
		{"bad json", "{not json", http.StatusBadRequest, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.message, messageOf(t, rec))
		})
	}
}

func TestRegister_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, 100, 100)

	big := `{"username":"dave","password":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestLogin_UniformFailure(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.register(t, "erin", "secret1")

	wrong := s.do(t, http.MethodPost, "/api/auth/login", "", model.CredentialsRequest{Username: "erin", Password: "nope-nope"})
	unknown := s.do(t, http.MethodPost, "/api/auth/login", "", model.CredentialsRequest{Username: "nobody", Password: "secret1"})

	assert.Equal(t, http.StatusBadRequest, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "username or password incorrect", messageOf(t, wrong))
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 100, 100)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/user"},
		{http.MethodPost, "/api/auth/update-email"},
		{http.MethodGet, "/api/messages"},
		{http.MethodPost, "/api/messages"},
	}
	for _, rt := range routes {
		for _, token := range []string{"", "garbage"} {
			rec := s.do(t, rt.method, rt.path, token, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s token=%q", rt.method, rt.path, token)
			assert.Equal(t, middleware.LoginRequiredMessage, messageOf(t, rec))
		}
	}
}

func TestProfile_HidesSecrets(t *testing.T) {
	s := newTestServer(t, 100, 100)
	token := s.register(t, "frank", "secret1")

	rec := s.do(t, http.MethodGet, "/api/auth/user", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"username", "email", "createdAt"}, keys(body))
	assert.NotContains(t, rec.Body.String(), "argon2id")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestUpdateEmail(t *testing.T) {
	s := newTestServer(t, 100, 100)
	token := s.register(t, "grace", "secret1")

	rec := s.do(t, http.MethodPost, "/api/auth/update-email", token, model.UpdateEmailRequest{Email: "no-at-sign"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/update-email", token, model.UpdateEmailRequest{Email: "grace@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.UpdateEmailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "grace@example.com", resp.Email)
	assert.Equal(t, service.EmailUpdatedMessage, resp.Message)

	rec = s.do(t, http.MethodGet, "/api/auth/user", token, nil)
	assert.Contains(t, rec.Body.String(), `"email":"grace@example.com"`)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", model.CredentialsRequest{Username: "grace", Password: "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMessages(t *testing.T) {
	s := newTestServer(t, 100, 100)
	alice := s.register(t, "alice", "secret1")
	bob := s.register(t, "bob", "secret1")

	rec := s.do(t, http.MethodGet, "/api/messages", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/messages", alice, model.PostMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/messages", alice, model.PostMessageRequest{Text: "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created model.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "alice", created.Nickname)
	assert.NotEmpty(t, created.ID)

	rec = s.do(t, http.MethodPost, "/api/messages", bob, model.PostMessageRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/messages", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []model.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, "bob", msgs[1].Nickname)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	s := newTestServer(t, 100, 100)
	token := s.register(t, "heidi", "secret1")

	require.NoError(t, s.auth.DeleteAccount(context.Background(), "heidi"))

	rec := s.do(t, http.MethodGet, "/api/auth/user", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.LoginRequiredMessage, messageOf(t, rec))
}

func TestExpiredTokenRejected(t *testing.T) {
	s := newTestServer(t, 100, 100)
	s.register(t, "ivan", "secret1")
	user, err := s.stores.Users.FindByUsername(context.Background(), "ivan")
	require.NoError(t, err)

	issued := time.Now().Add(-25 * time.Hour)
	claims := crypto.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chatpool",
			Subject:   user.ID,
			Audience:  jwt.ClaimStrings{"chatpool-api"},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(24 * time.Hour)),
		},
		UserID: user.ID,
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/api/auth/user", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, 0.01, 2)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/auth/login", "", model.CredentialsRequest{Username: "x", Password: "y"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	rec := s.do(t, http.MethodPost, "/api/auth/login", "", model.CredentialsRequest{Username: "x", Password: "y"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The limit only covers the credential endpoints.
	rec = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRateLimit_IgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t, 0.001, 2)

	limited := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"x","password":"y"}`))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 8, limited)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	s := newTestServer(t, 100, 100)
	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	HealthHandler(failingPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 100, 100)

	req := httptest.NewRequest(http.MethodOptions, "/api/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
