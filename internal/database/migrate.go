package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/gatekeeper/migrations"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

// OpenSQL opens a database/sql handle on the lib/pq driver for goose
func OpenSQL(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	return sqlDB, nil
}

// Migrate applies the embedded migrations with the given goose command
// ("up", "down", "status", ...)
func Migrate(ctx context.Context, sqlDB *sql.DB, command string, logger *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	logger.Info("running database migrations", slog.String("command", command))

	if err := goose.RunContext(ctx, command, sqlDB, "."); err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}

	return nil
}
