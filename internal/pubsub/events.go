// Package pubsub provides a small generic publish/subscribe broker used to fan
// out log entries and capability changes.
package pubsub

import "time"

// EventType tells subscribers whether a payload is new or replaces an
// earlier value.
type EventType string

const (
	// CreatedEvent carries a new payload, such as a log entry.
	CreatedEvent EventType = "created"
	// UpdatedEvent carries the new value of something already published,
	// such as a capability flag.
	UpdatedEvent EventType = "updated"
)

// Event is a published payload stamped with its publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}
