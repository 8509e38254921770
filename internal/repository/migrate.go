package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/chatpool/chatpool-go/internal/repository/migrations"
)

// gooseDialects maps configured drivers to goose dialect names and to the
// migration directory holding that dialect's SQL.
var gooseDialects = map[string]string{
	DriverMySQL:    "mysql",
	DriverPostgres: "postgres",
	DriverSQLite:   "sqlite3",
}

// gooseUp is a seam for testing goose.UpContext.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate applies the embedded schema migrations for driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := gooseUp(ctx, db, dialect); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
