// Package events defines the topics and payloads emitted by the registration
// engine and the reconciliation sweep, and the publishers that carry them.
package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/evreg/internal/model"
)

// Event topic constants
const (
	TopicRegistrationCreated  = "evreg.registration.created"
	TopicRegistrationOrphaned = "evreg.registration.orphaned"
	TopicCapacityMismatch     = "evreg.capacity.mismatch"

	// TopicAll matches every topic above.
	TopicAll = "evreg.>"
)

// Event types

type RegistrationCreated struct {
	Registration *model.Registration `json:"registration"`
	Capacity     model.Capacity      `json:"capacity"`
}

// RegistrationOrphaned reports capacity that was reserved but never backed
// by a registration record.
type RegistrationOrphaned struct {
	EventID        string `json:"eventId"`
	RegistrationID string `json:"registrationId"`
	GroupSize      int    `json:"groupSize"`
	Error          string `json:"error"`
}

type CapacityMismatch struct {
	EventID    string    `json:"eventId"`
	Registered int       `json:"registered"`
	Recorded   int       `json:"recorded"` // sum of group sizes over registration records
	Records    int       `json:"records"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
