package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/chatpool/chatpool-go/internal/config"
	"github.com/chatpool/chatpool-go/internal/crypto"
	"github.com/chatpool/chatpool-go/internal/handler"
	"github.com/chatpool/chatpool-go/internal/logging"
	"github.com/chatpool/chatpool-go/internal/middleware"
	"github.com/chatpool/chatpool-go/internal/repository"
	"github.com/chatpool/chatpool-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	stores, err := repository.OpenStores(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer stores.Close()

	hasher, err := crypto.NewPasswordHasher(cfg.Hash)
	if err != nil {
		return err
	}
	tokens, err := crypto.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	authService, err := service.NewAuthService(stores.Users, hasher, tokens)
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.RouterConfig{
		Auth:           authService,
		Messages:       service.NewMessageService(stores.Messages, cfg.MessageListLimit),
		Gate:           middleware.NewGate(tokens, stores.Users),
		RateLimiter:    middleware.NewRateLimiter(ctx, cfg.AuthRateLimitRPS, cfg.AuthRateLimitBurst),
		Health:         stores,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "database", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
