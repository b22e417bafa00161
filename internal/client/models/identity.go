// Package models defines the client-side data model: fleet entities, the
// identity tag carried by every entity, queued offline events, and derived
// alerts.
package models

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// IdentityKind tags an Identity as pending (client-assigned placeholder) or
// persisted (server-assigned durable id).
type IdentityKind int

const (
	// IdentityPending marks a record that has not been persisted remotely.
	// Its id is a short, client-generated placeholder.
	IdentityPending IdentityKind = iota

	// IdentityPersisted marks a record that mirrors a row in the remote
	// store. Its id is the long, server-assigned identifier.
	IdentityPersisted
)

// Identity is the identity tag carried by every fleet entity. It is an
// explicit tagged variant: create-vs-update classification during
// reconciliation is a match on the kind, never a heuristic on the id string.
//
// The zero Identity is a pending identity with an empty placeholder; callers
// that build new records should use NewPendingIdentity so the placeholder is
// set.
type Identity struct {
	kind IdentityKind
	id   string
}

// NewPending returns a pending identity with the given client placeholder.
func NewPending(tempID string) Identity {
	return Identity{kind: IdentityPending, id: tempID}
}

// NewPersisted returns a persisted identity with the given durable id.
func NewPersisted(durableID string) Identity {
	return Identity{kind: IdentityPersisted, id: durableID}
}

// NewPendingIdentity returns a pending identity with a fresh random
// placeholder (8 hex characters).
func NewPendingIdentity() Identity {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return NewPending(hex.EncodeToString(b))
}

// Kind returns the identity tag.
func (i Identity) Kind() IdentityKind { return i.kind }

// Value returns the raw identifier: the placeholder for pending identities,
// the durable id for persisted ones.
func (i Identity) Value() string { return i.id }

// IsPersisted reports whether the identity is server-assigned.
func (i Identity) IsPersisted() bool { return i.kind == IdentityPersisted }

// IsZero reports whether the identity should be omitted from wire payloads.
// Only persisted identities travel to the remote store; a create payload is
// sent without an identity and the server assigns one.
func (i Identity) IsZero() bool { return i.kind != IdentityPersisted }

func (i Identity) String() string {
	if i.kind == IdentityPersisted {
		return i.id
	}
	return "pending:" + i.id
}

// MarshalJSON emits the durable id for persisted identities and null for
// pending ones. Combined with the `omitzero` struct tag on entity ID fields,
// a pending record's create payload carries no identity at all.
func (i Identity) MarshalJSON() ([]byte, error) {
	if i.kind == IdentityPersisted {
		return json.Marshal(i.id)
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts a durable id string (anything decoded from the remote
// store is persisted by definition) or null.
func (i *Identity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Identity{}
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("identity must be a string or null: %w", err)
	}
	*i = NewPersisted(id)
	return nil
}
