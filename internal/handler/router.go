package handler

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chatpool/chatpool-go/internal/middleware"
	"github.com/chatpool/chatpool-go/internal/service"
)

// RouterConfig holds everything the HTTP surface is built from.
type RouterConfig struct {
	Auth           *service.AuthService
	Messages       *service.MessageService
	Gate           *middleware.Gate
	RateLimiter    *middleware.RateLimiter
	Health         Pinger
	AllowedOrigins []string
	// TrustedProxies are the peers whose forwarding headers are honored.
	TrustedProxies []netip.Prefix
}

// NewRouter builds the application's HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth)
	msgHandler := NewMessageHandler(cfg.Messages)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.TrustedRealIP(cfg.TrustedProxies))
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", HealthHandler(cfg.Health))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}
			r.Post("/auth/register", authHandler.HandleRegister)
			r.Post("/auth/login", authHandler.HandleLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Gate.Middleware)
			r.Get("/auth/user", authHandler.HandleProfile)
			r.Post("/auth/update-email", authHandler.HandleUpdateEmail)

			r.Get("/messages", msgHandler.HandleList)
			r.Post("/messages", msgHandler.HandlePost)
		})
	})

	return r
}
