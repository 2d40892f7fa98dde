package events

import "context"

// Message is one event received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the bus. The channel returned by
// Subscribe closes once ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern string) (<-chan Message, error)
	Close() error
}
