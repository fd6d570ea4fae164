// Package channels connects chat transports to the message bus.
package channels

import (
	"context"

	"github.com/CareClaw/CareClaw/internal/bus"
)

// Channel defines the interface for chat transports (WhatsApp, Kafka, ...).
// A channel publishes inbound messages and stop signals to the bus and
// subscribes to update and status events for its own name.
type Channel interface {
	// Name returns the channel name (e.g. "whatsapp").
	Name() string
	// Start starts the channel listener.
	Start(ctx context.Context) error
	// Stop stops the channel listener.
	Stop() error
}

// BaseChannel provides common functionality for channels.
type BaseChannel struct {
	Bus *bus.MessageBus
}
