package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/evreg/internal/events"
)

const (
	// hubHistorySize is the number of recent events kept for Last-Event-ID
	// replay.
	hubHistorySize = 1000

	// streamKeepalive is how often a comment line is sent to idle clients.
	streamKeepalive = 15 * time.Second

	subscriberBuffer = 64
)

// streamEvent is one published event as delivered to stream clients.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// Hub fans published events out to SSE clients and remembers the most
// recent ones for reconnecting clients. It implements events.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*subscriber]struct{}
	history []streamEvent // ring, oldest at head once full
	head    int
	lastID  uint64
	done    chan struct{}
	closed  bool
}

var _ events.Publisher = (*Hub)(nil)

type subscriber struct {
	patterns []string // empty matches every topic
	ch       chan streamEvent
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		history: make([]streamEvent, 0, hubHistorySize),
		done:    make(chan struct{}),
	}
}

// Publish JSON-encodes event and delivers it to matching clients. Slow
// clients miss events rather than block the publisher.
func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.lastID++
	evt := streamEvent{ID: h.lastID, Topic: topic, Data: data}
	if len(h.history) < hubHistorySize {
		h.history = append(h.history, evt)
	} else {
		h.history[h.head] = evt
		h.head = (h.head + 1) % hubHistorySize
	}

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
	return nil
}

// Close ends every open stream. Later publishes are dropped.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}

// subscribe registers a client and returns the buffered events after
// lastID that match its patterns, atomically with the registration so no
// event is both missed and not replayed.
func (h *Hub) subscribe(patterns []string, lastID uint64, replay bool) (*subscriber, []streamEvent) {
	c := &subscriber{patterns: patterns, ch: make(chan streamEvent, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if !replay {
		return c, nil
	}
	var backlog []streamEvent
	for i := range h.history {
		evt := h.history[(h.head+i)%len(h.history)]
		if evt.ID > lastID && c.matches(evt.Topic) {
			backlog = append(backlog, evt)
		}
	}
	return c, backlog
}

func (h *Hub) unsubscribe(c *subscriber) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *subscriber) matches(topic string) bool {
	if len(c.patterns) == 0 {
		return true
	}
	for _, p := range c.patterns {
		if matchTopic(p, topic) {
			return true
		}
	}
	return false
}

// matchTopic matches a dot-separated topic against a NATS-style pattern:
// "*" matches one segment and a trailing ">" matches one or more.
func matchTopic(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" && i == len(pat)-1 {
			return len(top) > i
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// handleEventStream handles GET /v1/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var patterns []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			patterns = append(patterns, t)
		}
	}
	lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	client, backlog := s.hub.subscribe(patterns, lastID, err == nil)
	defer s.hub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, evt := range backlog {
		writeStreamEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.hub.done:
			return
		case evt := <-client.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
