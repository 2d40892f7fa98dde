// Package client provides a transport-agnostic interface to the evreg
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

// Client is the interface CLI commands use to talk to a server.
type Client interface {
	ListEvents(ctx context.Context, req rpc.ListEventsRequest) (*catalog.EventPage, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	Register(ctx context.Context, req registration.Request) (*registration.Result, error)
	ListRegistrations(ctx context.Context, eventID string) ([]*model.Registration, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// APIError is a refusal reported by the server. Code is empty when the
// server answered without a recognizable error envelope.
type APIError struct {
	StatusCode int // HTTP status; 0 for gRPC
	Code       model.Code
	Message    string
	Ambiguous  bool
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
	}
	if e.Ambiguous {
		return fmt.Sprintf("%s: %s (outcome unknown)", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// registrationList mirrors the server's registrations response.
type registrationList struct {
	Registrations []*model.Registration `json:"registrations"`
	Total         int                   `json:"total"`
}
