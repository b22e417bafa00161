// Package common defines shared constants and sentinel errors used across
// the FleetSync client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Remote-store errors surfaced by the HTTP client.
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUnavailable  = errors.New("remote store unavailable")
	ErrBadRequest   = errors.New("rejected by remote store")

	// Local durable-store errors. A failure of the local database is fatal
	// for the operation in progress and is never retried silently.
	ErrLocalStore = errors.New("local store failure")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
