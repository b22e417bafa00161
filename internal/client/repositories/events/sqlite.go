// Package events stores queued offline events in the local SQLite database.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkravets/fleetsync/internal/client/models"
	"github.com/mkravets/fleetsync/internal/dbx"
)

// SQLiteRepository implements Repository over the local SQLite database. It
// holds the *sql.DB directly because Confirm runs its own transaction.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, eventType string, payload json.RawMessage) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (type, payload, captured_at, synced) VALUES (?, ?, ?, 0)`,
		eventType, []byte(payload), time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read event seq: %w", err)
	}
	return seq, nil
}

func (r *SQLiteRepository) GetAllPending(ctx context.Context) ([]models.OfflineEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, type, payload, captured_at FROM events WHERE synced=0 ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select events: %w", err)
	}
	defer rows.Close()

	var result []models.OfflineEvent
	for rows.Next() {
		var e models.OfflineEvent
		var capturedAt int64
		if err := rows.Scan(&e.Seq, &e.Type, (*[]byte)(&e.Payload), &capturedAt); err != nil {
			return nil, err
		}
		e.CapturedAt = time.Unix(capturedAt, 0).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, seq int64, payload json.RawMessage) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET payload=? WHERE seq=? AND synced=0`, []byte(payload), seq)
	if err != nil {
		return false, fmt.Errorf("failed to update event %d payload: %w", seq, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Confirm(ctx context.Context, seq int64) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `UPDATE events SET synced=1 WHERE seq=?`, seq); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM events WHERE seq=?`, seq)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to confirm event %d: %w", seq, err)
	}
	return nil
}

func (r *SQLiteRepository) ReapSynced(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE synced=1`)
	if err != nil {
		return 0, fmt.Errorf("failed to reap synced events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE synced=0`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
