package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/mkravets/fleetsync/internal/client/migrations"
	"github.com/mkravets/fleetsync/internal/client/repositories/blobs"
	"github.com/mkravets/fleetsync/internal/client/repositories/events"
	"github.com/mkravets/fleetsync/internal/client/repositories/syncstate"

	_ "modernc.org/sqlite"
)

// Repositories bundles every local-store repository over one SQLite handle.
type Repositories struct {
	Events    events.Repository
	Blobs     blobs.Repository
	SyncState syncstate.Repository

	db *sql.DB
}

// Close releases the underlying database handle.
func (r *Repositories) Close() error { return r.db.Close() }

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the local SQLite database, brings
// the schema up to date and returns the repositories over it.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dsn, err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Repositories{
		Events:    events.NewSQLiteRepository(db),
		Blobs:     blobs.NewSQLiteRepository(db),
		SyncState: syncstate.NewSQLiteRepository(db),
		db:        db,
	}, nil
}
