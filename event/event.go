// Package event defines the immutable domain events stored in the log and the
// space/checkpoint records that scope them.
package event

import (
	"strings"
	"time"
)

// Type identifies the kind of an event. Types are dot-namespaced by
// convention (e.g. "deck.created", "card.translated").
type Type string

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the namespace prefix of the event type (e.g. "deck").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// Event represents an immutable fact in the event log.
type Event struct {
	// ID is the process-wide monotonic event id. Assigned by storage on append.
	ID int64
	// SpaceID is the space this event belongs to.
	SpaceID int64
	// SpaceSequence is the event sequence number within the space (starts
	// at 1). Assigned by storage on append.
	SpaceSequence int64
	// EntityID is the ID of the entity affected.
	EntityID string
	// Type identifies the kind of event.
	Type Type
	// Payload holds event-specific structured data.
	Payload map[string]any
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// CausationID is the id of the earlier event that caused this one.
	// Zero means no causing event.
	CausationID int64
	// CorrelationID groups events produced by one logical operation.
	// Defaulted to a generated identifier on append when empty.
	CorrelationID string
}

// AppendOptions carries the optional append metadata.
type AppendOptions struct {
	// CausationID links the new event to the event that caused it.
	CausationID int64
	// CorrelationID overrides the generated correlation identifier.
	CorrelationID string
	// Timestamp overrides the append time. Zero means "now".
	Timestamp time.Time
}
