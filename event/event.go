package event

import (
	"time"

	"github.com/google/uuid"
)

// Well-known sender endpoints.
const (
	// EndpointTimer is stamped on periodic tick events.
	EndpointTimer = "timer"

	// EndpointStore is stamped on configuration-change events.
	EndpointStore = "store"
)

// Event is an opaque unit of work passed between threads.
type Event struct {
	// ID uniquely identifies this event instance.
	ID uuid.UUID

	// SenderID identifies the logical source endpoint, e.g. "timer".
	SenderID string

	// Time is when the event was created.
	Time time.Time

	// Payload carries variable-shape data. Nil for a pure tick.
	Payload any
}

// New creates an event from the given sender endpoint.
func New(senderID string, payload any) *Event {
	return &Event{
		ID:       uuid.New(),
		SenderID: senderID,
		Time:     time.Now(),
		Payload:  payload,
	}
}
