package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
	DriverMemory   = "memory"
)

// sqlDriverNames maps configured drivers to registered database/sql drivers.
var sqlDriverNames = map[string]string{
	DriverMySQL:    "mysql",
	DriverPostgres: "pgx",
	DriverSQLite:   "sqlite3",
}

// Stores bundles the persistence layer handed to the services.
type Stores struct {
	Users    UserStore
	Messages MessageStore
	db       *sqlx.DB
}

// Ping reports whether the backing database is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewMemoryStores returns process-local stores for development and tests.
func NewMemoryStores() *Stores {
	return &Stores{
		Users:    NewMemoryUserRepository(),
		Messages: NewMemoryMessageRepository(),
	}
}

// OpenStores connects to the configured backend, applies migrations and
// returns the stores built on it.
func OpenStores(ctx context.Context, driver, dsn string) (*Stores, error) {
	if driver == DriverMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return NewMemoryStores(), nil
	}

	db, err := NewDB(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db.DB, driver); err != nil {
		db.Close()
		return nil, err
	}

	return &Stores{
		Users:    NewUserRepository(db),
		Messages: NewMessageRepository(db),
		db:       db,
	}, nil
}

// NewDB creates a connection pool for the given driver and DSN and verifies it
// with a ping.
func NewDB(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	sqlDriver, ok := sqlDriverNames[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	if driver == DriverMySQL {
		normalized, err := normalizeMySQLDSN(dsn)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s database: %w", driver, err)
	}

	return db, nil
}

// normalizeMySQLDSN forces the options the repositories rely on: time.Time
// scanning in UTC, and matched (not changed) rows in RowsAffected so that a
// no-op update is not mistaken for a missing row.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}
