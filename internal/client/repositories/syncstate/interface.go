package syncstate

import "context"

// Repository is a small key/value store for sync metadata: serialized remote
// snapshots (the deletion baseline, keyed "snapshot:<entity>"), last-sync
// timestamps, and the persisted read-state of the alert feed.
type Repository interface {
	// Get returns the value for key, or nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set inserts or replaces the value for key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
