// Package pubsub fans store changes, notices, and log lines out to the TUI
// and the tail command.
package pubsub

import (
	"context"
	"time"
)

// EventType says what a published payload describes.
type EventType string

const (
	// StateEvent carries a new store snapshot.
	StateEvent EventType = "state"
	// ConnectionEvent carries a snapshot whose stream connected flag flipped.
	ConnectionEvent EventType = "connection"
	// NoticeEvent carries a user-facing message (completion summary, failure text).
	NoticeEvent EventType = "notice"
	// LogEvent carries one formatted log line.
	LogEvent EventType = "log"
)

// Event is one delivery. Timestamp is the publish time.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber is the read side of a Broker.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}
