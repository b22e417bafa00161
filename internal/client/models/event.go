package models

import (
	"encoding/json"
	"time"
)

// OfflineEvent is a state-changing action captured while the remote store was
// unreachable. Events are persisted in the local database and replayed in Seq
// order once connectivity returns; a row is removed only after the remote
// write is confirmed.
type OfflineEvent struct {
	// Seq is assigned by the durable store (SQLite AUTOINCREMENT) and is
	// strictly increasing in capture order.
	Seq int64

	// Type names the action, e.g. "vehicle.save" or "trip.delete".
	Type string

	// Payload is the action's JSON-encoded arguments.
	Payload json.RawMessage

	CapturedAt time.Time

	// Synced is false for queued events. A synced event no longer exists in
	// the queue, so in practice rows always carry false; the column exists
	// so a crash between remote confirmation and local delete can be
	// detected and the row reaped instead of replayed.
	Synced bool
}
