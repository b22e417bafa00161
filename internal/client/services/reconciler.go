// Package services contains the synchronization core: the collection
// reconciler, the offline event queue, and the fleet service that wires both
// to the remote store and the local database.
package services

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/mkravets/fleetsync/internal/client/models"
	"github.com/mkravets/fleetsync/internal/logging"
)

// PersistFuncs carries the three remote-store operations the reconciler needs
// for one entity type. Create returns the stored record (durable identity and
// any server-normalized fields); Update and Delete are keyed by durable id
// and must be idempotent on the remote side.
type PersistFuncs[T models.Syncable] struct {
	Create func(ctx context.Context, item T) (T, error)
	Update func(ctx context.Context, id string, item T) error
	Delete func(ctx context.Context, id string) error
}

// Summary is the aggregate outcome of one reconciliation pass. Partial
// success is an expected outcome, so batch callers report this instead of an
// all-or-nothing result.
type Summary struct {
	Created int
	Updated int
	Deleted int
	Failed  int
}

// Saved returns how many upserts succeeded.
func (s Summary) Saved() int { return s.Created + s.Updated }

// Attempted returns how many per-item operations were issued.
func (s Summary) Attempted() int { return s.Created + s.Updated + s.Deleted + s.Failed }

// Report renders a user-facing "3 of 4 saved" style summary.
func (s Summary) Report() string {
	return fmt.Sprintf("%d of %d saved", s.Saved(), s.Saved()+s.Failed)
}

func (s Summary) add(o Summary) Summary {
	return Summary{
		Created: s.Created + o.Created,
		Updated: s.Updated + o.Updated,
		Deleted: s.Deleted + o.Deleted,
		Failed:  s.Failed + o.Failed,
	}
}

// Reconcile synchronizes one locally mutated collection with the remote store
// in a single pass, tolerating independent per-item failure.
//
// Classification is a match on the identity tag: persisted items are sent as
// full-payload updates (idempotent re-send, no field diffing), pending items
// as creates. Items present in snapshot but absent from current are deleted
// remotely; only persisted snapshot items ever generate a delete call.
//
// Items are processed sequentially in collection order. The returned
// collection has the same length and order as current: a successful create is
// replaced by the stored record, every other item is retained unchanged. All
// per-item errors are aggregated and returned alongside the collection; no
// failure aborts the pass.
//
// A locally removed item whose remote delete fails will reappear on the next
// full refresh. That risk is accepted and logged here rather than silently
// repaired.
func Reconcile[T models.Syncable](ctx context.Context, current, snapshot []T, fns PersistFuncs[T], log logging.Logger) ([]T, Summary, error) {
	var sum Summary
	var errs error

	currentIDs := make(map[string]struct{}, len(current))
	for _, item := range current {
		if id := item.Identity(); id.IsPersisted() {
			currentIDs[id.Value()] = struct{}{}
		}
	}

	for _, item := range snapshot {
		id := item.Identity()
		if !id.IsPersisted() {
			continue
		}
		if _, ok := currentIDs[id.Value()]; ok {
			continue
		}
		if err := fns.Delete(ctx, id.Value()); err != nil {
			sum.Failed++
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", id.Value(), err))
			log.Warn(ctx, "remote delete failed; record will reappear on next refresh",
				"id", id.Value(), "error", err)
			continue
		}
		sum.Deleted++
	}

	final := make([]T, 0, len(current))
	for _, item := range current {
		id := item.Identity()
		if id.IsPersisted() {
			if err := fns.Update(ctx, id.Value(), item); err != nil {
				sum.Failed++
				errs = multierr.Append(errs, fmt.Errorf("update %s: %w", id.Value(), err))
			} else {
				sum.Updated++
			}
			final = append(final, item)
			continue
		}

		stored, err := fns.Create(ctx, item)
		if err != nil {
			sum.Failed++
			errs = multierr.Append(errs, fmt.Errorf("create %s: %w", id.String(), err))
			// retain the pending item so the next pass retries it
			final = append(final, item)
			continue
		}
		sum.Created++
		final = append(final, stored)
	}

	return final, sum, errs
}

// PersistedOnly filters a reconciled collection down to the items that mirror
// a remote row. The result is the next deletion baseline: pending items are
// not part of remote state and must not appear in a snapshot.
func PersistedOnly[T models.Syncable](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if item.Identity().IsPersisted() {
			out = append(out, item)
		}
	}
	return out
}
