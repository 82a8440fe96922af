package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/udisondev/realmquest/internal/db/migrations"
)

// goose keeps dialect and base FS in package globals.
var gooseMu sync.Mutex

// RunMigrations runs goose migrations on the given PostgreSQL DSN.
func RunMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	return migrate(ctx, sqlDB, "postgres", migrations.PostgresDir)
}

// RunPoolMigrations runs PostgreSQL migrations through an existing pool's config.
func RunPoolMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	return migrate(ctx, sqlDB, "postgres", migrations.PostgresDir)
}

// RunSQLiteMigrations runs goose migrations on an open SQLite handle.
func RunSQLiteMigrations(ctx context.Context, sqlDB *sql.DB) error {
	return migrate(ctx, sqlDB, "sqlite3", migrations.SQLiteDir)
}

func migrate(ctx context.Context, sqlDB *sql.DB, dialect, dir string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, dir); err != nil {
		return fmt.Errorf("running %s migrations: %w", dialect, err)
	}
	return nil
}
