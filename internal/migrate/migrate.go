// Package migrate applies embedded SQL migrations on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/homedisk/migrations"
)

// Supported dialects. The value doubles as the migration directory name.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

// Up runs all pending migrations for dialect against db.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	var gooseDialect string
	switch dialect {
	case Postgres:
		gooseDialect = "postgres"
	case SQLite:
		gooseDialect = "sqlite3"
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", dialect)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, dialect)
}

// UpPostgres opens dsn with the pgx stdlib driver and migrates it.
func UpPostgres(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return Up(ctx, db, Postgres)
}
