package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"

	// subscriberBuffer is the per-subscription backlog. A consumer that
	// falls further behind loses messages rather than stalling the connection.
	subscriberBuffer = 64
)

func connect(url, name string, opts []nats.Option) (*nats.Conn, error) {
	base := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// NATSPublisher publishes each event as JSON on the subject named by its
// topic.
type NATSPublisher struct {
	conn *nats.Conn
}

var _ Publisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := connect(url, "evreg-publisher", opts)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	msg := nats.NewMsg(topic)
	msg.Header.Set(contentTypeHeader, contentTypeJSON)
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	return p.conn.Drain()
}

// NATSSubscriber delivers bus messages to in-process consumers. It
// reconnects indefinitely; extra options such as reconnect handlers are
// appended to that default.
type NATSSubscriber struct {
	conn    *nats.Conn
	dropped atomic.Uint64
}

var _ Subscriber = (*NATSSubscriber)(nil)

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "evreg-subscriber", opts)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe follows pattern ("evreg.>" and other NATS wildcards work) until
// ctx is done. The subscription is registered with the server before
// Subscribe returns.
func (s *NATSSubscriber) Subscribe(ctx context.Context, pattern string) (<-chan Message, error) {
	out := make(chan Message, subscriberBuffer)
	var (
		mu     sync.Mutex
		closed bool
	)
	sub, err := s.conn.Subscribe(pattern, func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- Message{Topic: msg.Subject, Data: msg.Data}:
		default:
			s.dropped.Add(1)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", pattern, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flushing subscription to %s: %w", pattern, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

// Dropped reports how many messages were discarded because a consumer's
// buffer was full.
func (s *NATSSubscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Close closes the connection. Open subscriptions stop receiving; their
// channels still close only when their contexts end.
func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
