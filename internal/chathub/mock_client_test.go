package chathub_test

import (
	"chatcall/backend/internal/models"
)

// MockClient is a test double for the chathub.Client interface. Events the
// hub sends land on Recv, where tests drain and inspect them.
type MockClient struct {
	connID string
	closed bool
	Recv   chan models.Event
}

func newMockClient(connID string) *MockClient {
	return &MockClient{
		connID: connID,
		Recv:   make(chan models.Event, 64), // Buffered to prevent blocking in tests
	}
}

func (c *MockClient) GetConnID() string {
	return c.connID
}

func (c *MockClient) GetSendChannel() chan<- models.Event {
	return c.Recv
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	if !c.closed {
		c.closed = true
		close(c.Recv)
	}
}

// DrainEvents returns everything delivered so far.
func (c *MockClient) DrainEvents() []models.Event {
	var events []models.Event
	for {
		select {
		case ev, ok := <-c.Recv:
			if !ok {
				return events
			}
			events = append(events, ev)
		default:
			return events
		}
	}
}

// EventsNamed filters the drained events by name.
func EventsNamed(events []models.Event, name string) []models.Event {
	var out []models.Event
	for _, ev := range events {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}
