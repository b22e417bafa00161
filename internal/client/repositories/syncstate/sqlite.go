// Package syncstate persists sync metadata (snapshots, timestamps, alert
// read-state) in the local SQLite database.
package syncstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mkravets/fleetsync/internal/dbx"
)

// Well-known keys.
const (
	KeyLastSyncAt     = "last_sync_at"
	KeyAlertReadState = "alert_read_state"
)

// SnapshotKey returns the syncstate key holding the remote snapshot of one
// entity collection.
func SnapshotKey(entity string) string { return "snapshot:" + entity }

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM syncstate WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get syncstate[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO syncstate (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set syncstate[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM syncstate WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete syncstate[%s]: %w", key, err)
	}
	return nil
}
