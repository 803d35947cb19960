// Package event defines the append-only event journal entries emitted by the
// ledger. Events are facts consumed by external indexers; no core behavior
// reads them back.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type identifies the type of a ledger event.
type Type string

// Quest lifecycle events.
const (
	// TypeQuestCreated records the creation of a quest definition.
	TypeQuestCreated Type = "quest.created"
	// TypeQuestCompleted records a quest being credited to a user.
	TypeQuestCompleted Type = "quest.completed"
)

// User events.
const (
	// TypeUserRegistered records a new user progress record.
	TypeUserRegistered Type = "user.registered"
	// TypeUserLevelUp records a derived level increase.
	TypeUserLevelUp Type = "user.level_up"
)

// Relay events.
const (
	// TypeMessageSent records a completion forwarded to the counterpart domain.
	TypeMessageSent Type = "relay.message_sent"
	// TypeMessageReceived records a completion received from the counterpart domain.
	TypeMessageReceived Type = "relay.message_received"
)

// Event represents an immutable entry in the per-domain event journal.
type Event struct {
	// Seq is the journal sequence number (starts at 1). Assigned by storage
	// on append.
	Seq uint64
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Domain returns the domain prefix of the event type (e.g., "quest", "relay").
func (t Type) Domain() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}

// New builds an event of the given type with a JSON-encoded payload.
func New(t Type, at time.Time, payload any) (Event, error) {
	if !t.IsValid() {
		return Event{}, fmt.Errorf("event type is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{
		Timestamp:   at.UTC(),
		Type:        t,
		PayloadJSON: raw,
	}, nil
}

// Decode unmarshals the event payload into target.
func (e Event) Decode(target any) error {
	if err := json.Unmarshal(e.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}
