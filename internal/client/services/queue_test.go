package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/fleetsync/internal/client/models"
	"github.com/mkravets/fleetsync/internal/client/repositories/events"
	"github.com/mkravets/fleetsync/internal/common"

	_ "modernc.org/sqlite"
)

func setupQueue(t *testing.T) (*OfflineQueue, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE events (
  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
  type        TEXT    NOT NULL,
  payload     BLOB    NOT NULL,
  captured_at INTEGER NOT NULL,
  synced      INTEGER NOT NULL DEFAULT 0
);
`)
	require.NoError(t, err)

	return NewOfflineQueue(events.NewSQLiteRepository(db), testLogger()), db
}

type payload struct {
	N int `json:"n"`
}

func TestQueueDrainInOrder(t *testing.T) {
	ctx := context.Background()
	q, _ := setupQueue(t)

	for i := 1; i <= 3; i++ {
		_, err := q.Enqueue(ctx, "trips.save", payload{N: i})
		require.NoError(t, err)
	}

	var applied []int
	res, err := q.Drain(ctx, func(_ context.Context, e models.OfflineEvent) (bool, error) {
		var p payload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		applied = append(applied, p.N)
		return true, nil
	})
	require.NoError(t, err)

	assert.Equal(t, DrainResult{Applied: 3}, res)
	assert.Equal(t, []int{1, 2, 3}, applied)

	n, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueueDrainSkipsFailedEvent(t *testing.T) {
	ctx := context.Background()
	q, _ := setupQueue(t)

	for i := 1; i <= 3; i++ {
		_, err := q.Enqueue(ctx, "trips.save", payload{N: i})
		require.NoError(t, err)
	}

	var applied []int
	res, err := q.Drain(ctx, func(_ context.Context, e models.OfflineEvent) (bool, error) {
		var p payload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		if p.N == 2 {
			return false, errors.New("server error")
		}
		applied = append(applied, p.N)
		return true, nil
	})
	require.NoError(t, err)

	// the stuck event does not block the one behind it
	assert.Equal(t, DrainResult{Applied: 2, Remaining: 1}, res)
	assert.Equal(t, []int{1, 3}, applied)

	// the failed event survives for the next drain
	res, err = q.Drain(ctx, func(_ context.Context, e models.OfflineEvent) (bool, error) {
		var p payload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		applied = append(applied, p.N)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Applied: 1}, res)
	assert.Equal(t, []int{1, 3, 2}, applied)
}

func TestQueueReentrantDrainIsNoop(t *testing.T) {
	ctx := context.Background()
	q, _ := setupQueue(t)

	_, err := q.Enqueue(ctx, "trips.save", payload{N: 1})
	require.NoError(t, err)

	inner := make(chan DrainResult, 1)
	var wg sync.WaitGroup
	res, err := q.Drain(ctx, func(_ context.Context, _ models.OfflineEvent) (bool, error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := q.Drain(ctx, func(context.Context, models.OfflineEvent) (bool, error) {
				return true, nil
			})
			assert.NoError(t, err)
			inner <- r
		}()
		wg.Wait()
		return true, nil
	})
	require.NoError(t, err)

	assert.Equal(t, DrainResult{Applied: 1}, res)
	assert.True(t, (<-inner).Skipped)
}

func TestQueueReapsStraySyncedRows(t *testing.T) {
	ctx := context.Background()
	q, db := setupQueue(t)

	seq, err := q.Enqueue(ctx, "trips.save", payload{N: 1})
	require.NoError(t, err)

	// a row marked synced, however it got that way, must never replay
	_, err = db.Exec(`UPDATE events SET synced=1 WHERE seq=?`, seq)
	require.NoError(t, err)

	calls := 0
	res, err := q.Drain(ctx, func(context.Context, models.OfflineEvent) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)

	// the confirmed event is reaped, never replayed
	assert.Zero(t, calls)
	assert.Equal(t, DrainResult{}, res)

	n, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueueAmendReplacesQueuedPayload(t *testing.T) {
	ctx := context.Background()
	q, _ := setupQueue(t)

	seq, err := q.Enqueue(ctx, "trips.save", payload{N: 1})
	require.NoError(t, err)

	ok, err := q.Amend(ctx, seq, payload{N: 2})
	require.NoError(t, err)
	assert.True(t, ok)

	var applied []int
	_, err = q.Drain(ctx, func(_ context.Context, e models.OfflineEvent) (bool, error) {
		var p payload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		applied = append(applied, p.N)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2}, applied)

	// the event is gone; a late amend reports that instead of resurrecting it
	ok, err = q.Amend(ctx, seq, payload{N: 3})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQueueEnqueueSurfacesLocalStoreFailure(t *testing.T) {
	ctx := context.Background()
	q, _ := setupQueue(t)

	_, err := q.Enqueue(ctx, "trips.save", make(chan int))
	require.Error(t, err)

	db, err2 := sql.Open("sqlite", ":memory:")
	require.NoError(t, err2)
	require.NoError(t, db.Close())
	broken := NewOfflineQueue(events.NewSQLiteRepository(db), testLogger())

	_, err = broken.Enqueue(ctx, "trips.save", payload{N: 1})
	require.ErrorIs(t, err, common.ErrLocalStore)
}
