package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/mkravets/fleetsync/internal/client/models"
	"github.com/mkravets/fleetsync/internal/client/repositories/events"
	"github.com/mkravets/fleetsync/internal/common"
	"github.com/mkravets/fleetsync/internal/logging"
)

// ApplyFunc replays one queued event against the remote store. Returning
// (true, nil) confirms the remote write and removes the event; anything else
// leaves the event queued for a later drain.
type ApplyFunc func(ctx context.Context, e models.OfflineEvent) (bool, error)

// DrainResult reports the outcome of one drain pass.
type DrainResult struct {
	Applied   int
	Remaining int

	// Skipped is true when a drain was already in flight and this call was
	// a no-op.
	Skipped bool
}

// OfflineQueue is the durable queue of state-changing events captured while
// the remote store was unreachable. Events replay strictly in capture order,
// with one deliberate exception: a non-fatal per-event failure is skipped so
// a single stuck event cannot block unrelated queued work. Delivery is
// therefore at-least-once; event application must be idempotent at the remote
// side where that matters.
type OfflineQueue struct {
	repo     events.Repository
	log      logging.Logger
	draining atomic.Bool
}

// NewOfflineQueue returns a queue over the given event repository.
func NewOfflineQueue(repo events.Repository, log logging.Logger) *OfflineQueue {
	return &OfflineQueue{repo: repo, log: log.With("component", "offline_queue")}
}

// Enqueue appends a new event with a durable-store-assigned sequence number.
// It never touches the network; the only failure mode is the local store
// itself, which is fatal for the operation and surfaced to the caller.
func (q *OfflineQueue) Enqueue(ctx context.Context, eventType string, payload any) (int64, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}

	seq, err := q.repo.Insert(ctx, eventType, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}

	q.log.Info(ctx, "event queued", "type", eventType, "seq", seq)
	return seq, nil
}

// Amend replaces the payload of a still-queued event, keeping its position
// in the queue. Returns false when the event has already been replayed and
// removed.
func (q *OfflineQueue) Amend(ctx context.Context, seq int64, payload any) (bool, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("failed to encode payload: %w", err)
	}

	ok, err := q.repo.UpdatePayload(ctx, seq, b)
	if err != nil {
		return false, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}
	if ok {
		q.log.Info(ctx, "queued event amended", "seq", seq)
	}
	return ok, nil
}

// Drain replays all queued events in ascending sequence order. A re-entrant
// call while a drain is in flight is a no-op.
//
// For each event: apply returning (true, nil) confirms the remote write, and
// the event is removed (mark synced and delete, one transaction); (false, _)
// or an error leaves the event in place for the next drain and processing
// continues with the next event. Any row found already marked synced is
// reaped at the start of the pass, never replayed.
func (q *OfflineQueue) Drain(ctx context.Context, apply ApplyFunc) (DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{Skipped: true}, nil
	}
	defer q.draining.Store(false)

	if n, err := q.repo.ReapSynced(ctx); err != nil {
		return DrainResult{}, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	} else if n > 0 {
		q.log.Warn(ctx, "reaped events already confirmed by a previous run", "count", n)
	}

	queued, err := q.repo.GetAllPending(ctx)
	if err != nil {
		return DrainResult{}, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}

	var res DrainResult
	for _, e := range queued {
		ok, err := apply(ctx, e)
		if err != nil || !ok {
			res.Remaining++
			q.log.Warn(ctx, "replay failed, event left queued",
				"type", e.Type, "seq", e.Seq, "error", err)
			continue
		}

		if err := q.repo.Confirm(ctx, e.Seq); err != nil {
			return res, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
		}
		res.Applied++
	}

	if res.Applied > 0 || res.Remaining > 0 {
		q.log.Info(ctx, "drain finished", "applied", res.Applied, "remaining", res.Remaining)
	}
	return res, nil
}

// Pending returns the number of queued events.
func (q *OfflineQueue) Pending(ctx context.Context) (int64, error) {
	n, err := q.repo.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrLocalStore, err)
	}
	return n, nil
}
