package blobs

import "context"

// UploadStatus values for cached blobs.
const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
)

// Repository is the arbitrary-key blob cache (vehicle and driver photos)
// backed by the local SQLite database. It shares the database file with the
// event queue but uses independent keys only; no cross-table atomicity is
// assumed.
type Repository interface {
	// Put stores (or replaces) a blob under key and resets its upload
	// status to pending.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the blob for key, or common.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob for key.
	Delete(ctx context.Context, key string) error

	// KeysPendingUpload lists keys whose blobs still need to reach remote
	// storage.
	KeysPendingUpload(ctx context.Context) ([]string, error)

	// MarkUploaded records that the blob for key has been uploaded.
	MarkUploaded(ctx context.Context, key string) error
}
