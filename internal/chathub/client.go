package chathub

import "chatcall/backend/internal/models"

// Client is the interface for one live connection, whatever the transport.
// It abstracts the underlying communication mechanism so the hub can manage
// real websocket clients and test doubles uniformly.
type Client interface {
	// GetConnID returns the unique identifier of this connection. A user on
	// two tabs holds two clients with two distinct connection IDs.
	GetConnID() string

	// GetSendChannel returns the channel the hub writes outbound events to.
	// It is a send-only channel; the client's write pump drains it.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()

	// Close shuts down the outbound side of the client.
	Close()
}
