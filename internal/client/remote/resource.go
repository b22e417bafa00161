package remote

import "context"

// Resource is a typed view over one remote collection ("vehicles",
// "drivers", ...). It exists so the reconciler can work with concrete entity
// types while the Store stays a plain JSON transport.
type Resource[T any] struct {
	store Store
	name  string
}

// NewResource binds an entity type to its remote collection name.
func NewResource[T any](store Store, name string) Resource[T] {
	return Resource[T]{store: store, name: name}
}

// Name returns the remote collection name.
func (r Resource[T]) Name() string { return r.name }

// Create sends item without an identity (pending identities are omitted from
// the wire payload) and returns the stored record as the server normalized
// it, durable id included.
func (r Resource[T]) Create(ctx context.Context, item T) (T, error) {
	var out T
	if err := r.store.Create(ctx, r.name, item, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Update replaces the record with the given durable id with the full payload
// of item. The remote copy is assumed equal afterwards.
func (r Resource[T]) Update(ctx context.Context, id string, item T) error {
	return r.store.Update(ctx, r.name, id, item)
}

// Delete removes the record with the given durable id.
func (r Resource[T]) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.name, id)
}

// List fetches the full remote collection.
func (r Resource[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	if err := r.store.List(ctx, r.name, &out); err != nil {
		return nil, err
	}
	return out, nil
}
