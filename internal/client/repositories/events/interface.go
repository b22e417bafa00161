package events

import (
	"context"
	"encoding/json"

	"github.com/mkravets/fleetsync/internal/client/models"
)

// Repository persists the offline event queue. The durable store assigns a
// strictly increasing sequence number on insert, and a row disappears only
// after the corresponding remote write is confirmed.
type Repository interface {
	// Insert appends a new unsynced event and returns its sequence number.
	Insert(ctx context.Context, eventType string, payload json.RawMessage) (int64, error)

	// GetAllPending returns every unsynced event in ascending sequence
	// order.
	GetAllPending(ctx context.Context) ([]models.OfflineEvent, error)

	// UpdatePayload replaces the payload of a still-queued event in place,
	// keeping its sequence position. Returns false when the event is no
	// longer queued.
	UpdatePayload(ctx context.Context, seq int64, payload json.RawMessage) (bool, error)

	// Confirm records the remote confirmation and removes the event in one
	// transaction.
	Confirm(ctx context.Context, seq int64) error

	// ReapSynced deletes any rows found marked synced, returning how many
	// were removed. A synced row must never be replayed.
	ReapSynced(ctx context.Context) (int64, error)

	// CountPending returns the number of queued, unsynced events.
	CountPending(ctx context.Context) (int64, error)
}
