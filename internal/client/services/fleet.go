package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mkravets/fleetsync/internal/client/alerts"
	"github.com/mkravets/fleetsync/internal/client/models"
	"github.com/mkravets/fleetsync/internal/client/remote"
	"github.com/mkravets/fleetsync/internal/client/repositories/syncstate"
	"github.com/mkravets/fleetsync/internal/common"
	"github.com/mkravets/fleetsync/internal/logging"
)

// Remote collection names. They double as the entity prefix of queued event
// types ("vehicles.save", "trips.delete", ...).
const (
	ResourceVehicles = "vehicles"
	ResourceDrivers  = "drivers"
	ResourceTrips    = "trips"
	ResourceShippers = "shippers"
	ResourceTrailers = "trailers"
	ResourceTires    = "tires"
)

// Collections bundles one in-memory copy of every entity collection.
type Collections struct {
	Vehicles []models.Vehicle
	Drivers  []models.Driver
	Trips    []models.Trip
	Shippers []models.Shipper
	Trailers []models.Trailer
	Tires    []models.Tire
}

// Fleet is the synchronization service for the whole entity graph. The UI is
// its only caller: writes go through SaveX (reconciled when online, queued
// when not), the queue replays through ReplayEvent, and the notification feed
// comes from RecomputeAlerts.
type Fleet struct {
	queue *OfflineQueue
	state syncstate.Repository
	log   logging.Logger

	vehicles remote.Resource[models.Vehicle]
	drivers  remote.Resource[models.Driver]
	trips    remote.Resource[models.Trip]
	shippers remote.Resource[models.Shipper]
	trailers remote.Resource[models.Trailer]
	tires    remote.Resource[models.Tire]

	online   atomic.Bool
	alertCfg alerts.Config

	mu      sync.Mutex
	feed    []models.Alert
	readIDs map[string]struct{}

	// pending items already captured as queued creates, keyed by
	// placeholder, so repeated offline saves do not queue the same create
	// twice; payload and seq let a later offline edit amend the queued
	// event in place
	queuedPending map[string]queuedCreate
}

type queuedCreate struct {
	seq     int64
	payload []byte
}

// NewFleet wires the service to the remote store and the local database.
func NewFleet(store remote.Store, queue *OfflineQueue, state syncstate.Repository, alertCfg alerts.Config, log logging.Logger) *Fleet {
	return &Fleet{
		queue: queue,
		state: state,
		log:   log.With("component", "fleet"),

		vehicles: remote.NewResource[models.Vehicle](store, ResourceVehicles),
		drivers:  remote.NewResource[models.Driver](store, ResourceDrivers),
		trips:    remote.NewResource[models.Trip](store, ResourceTrips),
		shippers: remote.NewResource[models.Shipper](store, ResourceShippers),
		trailers: remote.NewResource[models.Trailer](store, ResourceTrailers),
		tires:    remote.NewResource[models.Tire](store, ResourceTires),

		alertCfg:      alertCfg,
		readIDs:       make(map[string]struct{}),
		queuedPending: make(map[string]queuedCreate),
	}
}

// SetOnline records the connectivity state; the online watcher flips it.
func (f *Fleet) SetOnline(v bool) { f.online.Store(v) }

// Online reports the last known connectivity state.
func (f *Fleet) Online() bool { return f.online.Load() }

// Queue exposes the offline queue for drain triggers.
func (f *Fleet) Queue() *OfflineQueue { return f.queue }

// Refresh fetches every collection from the remote store and replaces the
// stored snapshots (the deletion baselines) with what the server returned.
// Entity types are fetched concurrently; they are independent of each other.
func (f *Fleet) Refresh(ctx context.Context) (Collections, error) {
	var cols Collections

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { cols.Vehicles, err = refresh(ctx, f, f.vehicles); return })
	g.Go(func() (err error) { cols.Drivers, err = refresh(ctx, f, f.drivers); return })
	g.Go(func() (err error) { cols.Trips, err = refresh(ctx, f, f.trips); return })
	g.Go(func() (err error) { cols.Shippers, err = refresh(ctx, f, f.shippers); return })
	g.Go(func() (err error) { cols.Trailers, err = refresh(ctx, f, f.trailers); return })
	g.Go(func() (err error) { cols.Tires, err = refresh(ctx, f, f.tires); return })

	if err := g.Wait(); err != nil {
		return Collections{}, err
	}
	return cols, nil
}

func refresh[T models.Syncable](ctx context.Context, f *Fleet, res remote.Resource[T]) ([]T, error) {
	items, err := res.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh %s: %w", res.Name(), err)
	}
	if err := saveSnapshot(ctx, f.state, res.Name(), items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveVehicles reconciles the vehicle collection (or queues it when
// offline). The returned collection replaces the caller's copy.
func (f *Fleet) SaveVehicles(ctx context.Context, current []models.Vehicle) ([]models.Vehicle, Summary, error) {
	return save(ctx, f, f.vehicles, current)
}

func (f *Fleet) SaveDrivers(ctx context.Context, current []models.Driver) ([]models.Driver, Summary, error) {
	return save(ctx, f, f.drivers, current)
}

func (f *Fleet) SaveTrips(ctx context.Context, current []models.Trip) ([]models.Trip, Summary, error) {
	return save(ctx, f, f.trips, current)
}

func (f *Fleet) SaveShippers(ctx context.Context, current []models.Shipper) ([]models.Shipper, Summary, error) {
	return save(ctx, f, f.shippers, current)
}

func (f *Fleet) SaveTrailers(ctx context.Context, current []models.Trailer) ([]models.Trailer, Summary, error) {
	return save(ctx, f, f.trailers, current)
}

func (f *Fleet) SaveTires(ctx context.Context, current []models.Tire) ([]models.Tire, Summary, error) {
	return save(ctx, f, f.tires, current)
}

// SyncAll reconciles every collection against its snapshot. Entity types run
// concurrently; per-item failures are aggregated, never cancel each other,
// and the combined Summary supports a single "N of M saved" report.
func (f *Fleet) SyncAll(ctx context.Context, cols Collections) (Collections, Summary, error) {
	var (
		out  Collections
		mu   sync.Mutex
		sum  Summary
		errs error
	)

	collect := func(s Summary, err error) {
		mu.Lock()
		defer mu.Unlock()
		sum = sum.add(s)
		errs = multierr.Append(errs, err)
	}

	var wg sync.WaitGroup
	wg.Add(6)
	go func() {
		defer wg.Done()
		var s Summary
		var err error
		out.Vehicles, s, err = save(ctx, f, f.vehicles, cols.Vehicles)
		collect(s, err)
	}()
	go func() {
		defer wg.Done()
		var s Summary
		var err error
		out.Drivers, s, err = save(ctx, f, f.drivers, cols.Drivers)
		collect(s, err)
	}()
	go func() {
		defer wg.Done()
		var s Summary
		var err error
		out.Trips, s, err = save(ctx, f, f.trips, cols.Trips)
		collect(s, err)
	}()
	go func() {
		defer wg.Done()
		var s Summary
		var err error
		out.Shippers, s, err = save(ctx, f, f.shippers, cols.Shippers)
		collect(s, err)
	}()
	go func() {
		defer wg.Done()
		var s Summary
		var err error
		out.Trailers, s, err = save(ctx, f, f.trailers, cols.Trailers)
		collect(s, err)
	}()
	go func() {
		defer wg.Done()
		var s Summary
		var err error
		out.Tires, s, err = save(ctx, f, f.tires, cols.Tires)
		collect(s, err)
	}()
	wg.Wait()

	if err := f.state.Set(ctx, syncstate.KeyLastSyncAt, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
		errs = multierr.Append(errs, err)
	}
	return out, sum, errs
}

// save is the single write path for one entity type. Online, the collection
// is reconciled against its snapshot and the snapshot advanced to the result.
// Offline, the changes are captured as queued events and the collection is
// returned unchanged; identities fold back in on a later online pass.
func save[T models.Syncable](ctx context.Context, f *Fleet, res remote.Resource[T], current []T) ([]T, Summary, error) {
	snapshot, err := loadSnapshot[T](ctx, f.state, res.Name())
	if err != nil {
		return current, Summary{}, err
	}

	if !f.online.Load() {
		if err := enqueueChanges(ctx, f, res.Name(), current, snapshot); err != nil {
			return current, Summary{}, err
		}
		// the snapshot tracks remote state as it will be once the queue
		// drains, so the queued deletes and updates advance it now
		if err := saveSnapshot(ctx, f.state, res.Name(), PersistedOnly(current)); err != nil {
			return current, Summary{}, err
		}
		return current, Summary{}, nil
	}

	final, sum, rerr := Reconcile(ctx, current, snapshot, PersistFuncs[T]{
		Create: res.Create,
		Update: res.Update,
		Delete: res.Delete,
	}, f.log)

	if err := saveSnapshot(ctx, f.state, res.Name(), PersistedOnly(final)); err != nil {
		rerr = multierr.Append(rerr, err)
	}
	return final, sum, rerr
}

// enqueueChanges captures the offline mutations of one collection as events:
// a delete per snapshot item that vanished, a save per new or changed item.
// Unchanged persisted items (byte-equal JSON) are skipped so the queue holds
// mutations, not copies of the whole collection.
func enqueueChanges[T models.Syncable](ctx context.Context, f *Fleet, name string, current, snapshot []T) error {
	snapJSON := make(map[string][]byte, len(snapshot))
	for _, item := range snapshot {
		if id := item.Identity(); id.IsPersisted() {
			b, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to encode snapshot item: %w", err)
			}
			snapJSON[id.Value()] = b
		}
	}

	currentIDs := make(map[string]struct{}, len(current))
	for _, item := range current {
		if id := item.Identity(); id.IsPersisted() {
			currentIDs[id.Value()] = struct{}{}
		}
	}

	for id := range snapJSON {
		if _, ok := currentIDs[id]; ok {
			continue
		}
		if _, err := f.queue.Enqueue(ctx, name+".delete", deletePayload{ID: id}); err != nil {
			return err
		}
	}

	for _, item := range current {
		id := item.Identity()
		b, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to encode item: %w", err)
		}

		if id.IsPersisted() {
			if prev, ok := snapJSON[id.Value()]; ok && bytes.Equal(prev, b) {
				continue
			}
			if _, err := f.queue.Enqueue(ctx, name+".save", item); err != nil {
				return err
			}
			continue
		}

		if err := f.capturePendingCreate(ctx, name, id.Value(), item, b); err != nil {
			return err
		}
	}
	return nil
}

// capturePendingCreate queues a create for a pending item, or amends the
// already queued create when the item was edited offline after capture. The
// dedup entry is recorded only after the durable write succeeds, so a failed
// enqueue leaves the item eligible for capture on the next save.
func (f *Fleet) capturePendingCreate(ctx context.Context, name, placeholder string, item any, payload []byte) error {
	f.mu.Lock()
	prev, queued := f.queuedPending[placeholder]
	f.mu.Unlock()

	if queued {
		if bytes.Equal(prev.payload, payload) {
			return nil
		}
		ok, err := f.queue.Amend(ctx, prev.seq, item)
		if err != nil {
			return err
		}
		if ok {
			f.mu.Lock()
			f.queuedPending[placeholder] = queuedCreate{seq: prev.seq, payload: payload}
			f.mu.Unlock()
			return nil
		}
		// already replayed; fall through and capture afresh
	}

	seq, err := f.queue.Enqueue(ctx, name+".save", item)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.queuedPending[placeholder] = queuedCreate{seq: seq, payload: payload}
	f.mu.Unlock()
	return nil
}

// DrainQueue replays the queue against the remote store. After a drain that
// leaves nothing queued, the pending-create dedup set resets: anything still
// unsaved after that point is a fresh capture.
func (f *Fleet) DrainQueue(ctx context.Context) (DrainResult, error) {
	res, err := f.queue.Drain(ctx, f.ReplayEvent)
	if err == nil && !res.Skipped && res.Remaining == 0 {
		f.mu.Lock()
		f.queuedPending = make(map[string]queuedCreate)
		f.mu.Unlock()
	}
	return res, err
}

type deletePayload struct {
	ID string `json:"id"`
}

// ReplayEvent applies one queued event against the remote store. It is the
// ApplyFunc handed to OfflineQueue.Drain. Malformed events are dropped with
// an error log rather than left to clog the queue forever.
func (f *Fleet) ReplayEvent(ctx context.Context, e models.OfflineEvent) (bool, error) {
	name, action, ok := strings.Cut(e.Type, ".")
	if !ok {
		f.log.Error(ctx, "dropping malformed event", "type", e.Type, "seq", e.Seq)
		return true, nil
	}

	switch name {
	case ResourceVehicles:
		return replay(ctx, f, f.vehicles, action, e)
	case ResourceDrivers:
		return replay(ctx, f, f.drivers, action, e)
	case ResourceTrips:
		return replay(ctx, f, f.trips, action, e)
	case ResourceShippers:
		return replay(ctx, f, f.shippers, action, e)
	case ResourceTrailers:
		return replay(ctx, f, f.trailers, action, e)
	case ResourceTires:
		return replay(ctx, f, f.tires, action, e)
	default:
		f.log.Error(ctx, "dropping event for unknown resource", "type", e.Type, "seq", e.Seq)
		return true, nil
	}
}

func replay[T models.Syncable](ctx context.Context, f *Fleet, res remote.Resource[T], action string, e models.OfflineEvent) (bool, error) {
	switch action {
	case "save":
		var item T
		if err := json.Unmarshal(e.Payload, &item); err != nil {
			f.log.Error(ctx, "dropping event with undecodable payload", "type", e.Type, "seq", e.Seq, "error", err)
			return true, nil
		}
		if id := item.Identity(); id.IsPersisted() {
			if err := res.Update(ctx, id.Value(), item); err != nil {
				return false, err
			}
			return true, nil
		}
		if _, err := res.Create(ctx, item); err != nil {
			return false, err
		}
		// the durable id reaches the UI on the next refresh
		return true, nil
	case "delete":
		var p deletePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			f.log.Error(ctx, "dropping event with undecodable payload", "type", e.Type, "seq", e.Seq, "error", err)
			return true, nil
		}
		if err := res.Delete(ctx, p.ID); err != nil {
			if isAlreadyGone(err) {
				return true, nil
			}
			return false, err
		}
		return true, nil
	default:
		f.log.Error(ctx, "dropping event with unknown action", "type", e.Type, "seq", e.Seq)
		return true, nil
	}
}

// RecomputeAlerts rebuilds the notification feed from the current
// collections. Read marks survive: in-session through the previous feed,
// across restarts through the persisted read-state (LoadAlertReadState).
func (f *Fleet) RecomputeAlerts(trips []models.Trip, vehicles []models.Vehicle, drivers []models.Driver, now time.Time) []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := alerts.Compute(trips, vehicles, drivers, f.alertCfg, now)
	next = alerts.PreserveRead(f.feed, next)
	for i := range next {
		if _, ok := f.readIDs[next[i].ID]; ok {
			next[i].Read = true
		}
	}
	f.feed = next
	return next
}

// Alerts returns the current notification feed.
func (f *Fleet) Alerts() []models.Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feed
}

// MarkAlertRead marks one alert read and persists the read set so the mark
// survives a restart. Unknown ids are a no-op.
func (f *Fleet) MarkAlertRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.feed {
		if f.feed[i].ID == id {
			f.feed[i].Read = true
		}
	}
	f.readIDs[id] = struct{}{}
	return f.persistReadStateLocked(ctx)
}

// LoadAlertReadState restores the persisted set of read alert ids. Call once
// at startup, before the first RecomputeAlerts.
func (f *Fleet) LoadAlertReadState(ctx context.Context) error {
	b, err := f.state.Get(ctx, syncstate.KeyAlertReadState)
	if err != nil {
		return err
	}
	if b == nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf("failed to decode alert read state: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.readIDs[id] = struct{}{}
	}
	return nil
}

func (f *Fleet) persistReadStateLocked(ctx context.Context) error {
	ids := make([]string, 0, len(f.readIDs))
	for id := range f.readIDs {
		ids = append(ids, id)
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode alert read state: %w", err)
	}
	return f.state.Set(ctx, syncstate.KeyAlertReadState, b)
}

// ApplyTripDistance propagates a trip's driven distance into the vehicle's
// odometer. Call it when a trip is created or its distance edited; pass the
// difference against the previously stored value for edits.
func ApplyTripDistance(vehicles []models.Vehicle, vehicleID string, deltaKm float64) []models.Vehicle {
	for i := range vehicles {
		if vehicles[i].ID.Value() == vehicleID {
			vehicles[i].TotalKm += deltaKm
		}
	}
	return vehicles
}

// isAlreadyGone reports whether a replayed delete found the record already
// removed server-side. Replays are at least once, so this is a success.
func isAlreadyGone(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}

func loadSnapshot[T models.Syncable](ctx context.Context, state syncstate.Repository, name string) ([]T, error) {
	b, err := state.Get(ctx, syncstate.SnapshotKey(name))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", name, err)
	}
	return items, nil
}

func saveSnapshot[T models.Syncable](ctx context.Context, state syncstate.Repository, name string, items []T) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s snapshot: %w", name, err)
	}
	return state.Set(ctx, syncstate.SnapshotKey(name), b)
}
