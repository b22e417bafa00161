// Package remote implements the client of the hosted remote store. The
// reconciler and the offline queue only ever see the Store interface; the
// HTTP implementation lives behind it so tests can substitute fakes.
package remote

import "context"

// Store is the collaborator contract the sync core consumes. Every operation
// is independently callable, and Update/Delete are idempotent enough on the
// server side to tolerate a retry.
type Store interface {
	// Ping probes remote reachability. It is the connectivity signal the
	// online watcher polls.
	Ping(ctx context.Context) error

	// Create POSTs payload to the named resource collection and decodes the
	// stored record (durable id, server-normalized fields) into out.
	Create(ctx context.Context, resource string, payload any, out any) error

	// Update replaces the record with the given durable id.
	Update(ctx context.Context, resource, id string, payload any) error

	// Delete removes the record with the given durable id.
	Delete(ctx context.Context, resource, id string) error

	// List decodes the full remote collection into out.
	List(ctx context.Context, resource string, out any) error
}

// Presigner issues presigned upload URLs for staged blobs. It is separate
// from Store because only the photo upload path needs it.
type Presigner interface {
	// PresignPut returns a URL that accepts a direct PUT of the blob
	// stored under key.
	PresignPut(ctx context.Context, key string) (string, error)
}
