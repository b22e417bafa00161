package models

import "time"

// AlertKind names the rule that produced an alert.
type AlertKind string

const (
	AlertPaymentDelay   AlertKind = "payment_delay"
	AlertIncompleteData AlertKind = "incomplete_data"
	AlertMaintenance    AlertKind = "maintenance"
	AlertLicense        AlertKind = "license"
)

// Alert is one entry of the derived notification feed. The feed is recomputed
// wholesale on every input change; Read is the only field that survives
// recomputation, carried forward by ID.
type Alert struct {
	// ID is deterministic: a function of the rule kind (plus subtype for
	// license alerts) and the source entity id. Recomputing with unchanged
	// inputs yields the same ID.
	ID string `json:"id"`

	Kind      AlertKind `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`

	// RelatedEntityID is the durable id of the trip, vehicle, or driver the
	// alert describes.
	RelatedEntityID string `json:"relatedEntityId,omitempty"`
}
