package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chatpool/chatpool-go/internal/crypto"
)

// TokenTTL is the lifetime of every issued bearer token.
const TokenTTL = 24 * time.Hour

const (
	minMessageListLimit = 1
	maxMessageListLimit = 1000
)

var (
	ErrMissingSecret = errors.New("JWT_SECRET must be set")
	ErrMissingDSN    = errors.New("DATABASE_DSN must be set")
)

// Database selects the persistence backend.
type Database struct {
	Driver string
	DSN    string
}

type Config struct {
	Port     string
	Env      string
	LogLevel string
	Database Database

	JWTSecret string
	TokenTTL  time.Duration

	MessageListLimit int
	Hash             crypto.HashParams

	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	CORSAllowedOrigins []string
	TrustedProxies     []netip.Prefix
}

// Load reads the full server configuration from the environment.
func Load() (Config, error) {
	env := getEnv("ENV", "development")

	db, err := loadDatabase(env)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:     getEnv("PORT", "8080"),
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Database: db,

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  TokenTTL,

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	switch {
	case cfg.JWTSecret == "":
		return Config{}, ErrMissingSecret
	case len(cfg.JWTSecret) < crypto.MinSecretLength:
		return Config{}, fmt.Errorf("JWT_SECRET: %w", crypto.ErrWeakSecret)
	}

	if cfg.TrustedProxies, err = parsePrefixes("TRUSTED_PROXIES", os.Getenv("TRUSTED_PROXIES")); err != nil {
		return Config{}, err
	}

	if cfg.MessageListLimit, err = getInt("MESSAGE_LIST_LIMIT", 200); err != nil {
		return Config{}, err
	}
	if cfg.MessageListLimit < minMessageListLimit || cfg.MessageListLimit > maxMessageListLimit {
		return Config{}, fmt.Errorf("MESSAGE_LIST_LIMIT must be between %d and %d", minMessageListLimit, maxMessageListLimit)
	}

	if cfg.Hash, err = LoadHashParams(); err != nil {
		return Config{}, err
	}

	if cfg.AuthRateLimitRPS, err = getFloat("AUTH_RATE_LIMIT_RPS", 5); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateLimitBurst, err = getInt("AUTH_RATE_LIMIT_BURST", 10); err != nil {
		return Config{}, err
	}
	if cfg.AuthRateLimitRPS <= 0 || cfg.AuthRateLimitBurst < 1 {
		return Config{}, errors.New("AUTH_RATE_LIMIT_RPS and AUTH_RATE_LIMIT_BURST must be positive")
	}

	return cfg, nil
}

// LoadDatabase reads only the settings needed to open the store, for tools
// that never issue tokens.
func LoadDatabase() (Database, error) {
	return loadDatabase(getEnv("ENV", "development"))
}

func loadDatabase(env string) (Database, error) {
	db := Database{
		Driver: strings.ToLower(getEnv("DATABASE_DRIVER", "mysql")),
		DSN:    os.Getenv("DATABASE_DSN"),
	}

	switch db.Driver {
	case "memory":
		if env == "production" {
			return Database{}, errors.New("DATABASE_DRIVER=memory is not allowed in production")
		}
	case "mysql", "postgres", "sqlite3":
		if db.DSN == "" {
			return Database{}, ErrMissingDSN
		}
	default:
		return Database{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", db.Driver)
	}
	return db, nil
}

// LoadHashParams reads the Argon2id work factor, so every binary that hashes
// passwords uses the same cost.
func LoadHashParams() (crypto.HashParams, error) {
	p := crypto.DefaultHashParams()

	memory, err := getInt("HASH_MEMORY_KIB", int(p.Memory))
	if err != nil {
		return p, err
	}
	iterations, err := getInt("HASH_ITERATIONS", int(p.Iterations))
	if err != nil {
		return p, err
	}
	parallelism, err := getInt("HASH_PARALLELISM", int(p.Parallelism))
	if err != nil {
		return p, err
	}
	if memory < 1 || iterations < 1 || parallelism < 1 || parallelism > 255 {
		return p, errors.New("HASH_MEMORY_KIB, HASH_ITERATIONS and HASH_PARALLELISM must be positive")
	}

	p.Memory = uint32(memory)
	p.Iterations = uint32(iterations)
	p.Parallelism = uint8(parallelism)
	return p, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

// parsePrefixes accepts a comma separated list of CIDRs or bare addresses.
func parsePrefixes(key, s string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range splitList(s) {
		if p, err := netip.ParsePrefix(item); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid address or CIDR %q", key, item)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
