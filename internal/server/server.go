// Package server exposes the catalog and the registration engine over
// HTTP/JSON, gRPC and a server-sent-events stream.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
)

// DefaultRequestTimeout bounds each request when Options leaves it unset.
const DefaultRequestTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Hub receives published events for the SSE stream. It should also be
	// part of the engine's publisher so registrations reach stream clients.
	Hub            *Hub
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

// Server holds the request handlers for every transport.
type Server struct {
	catalog *catalog.Catalog
	engine  *registration.Engine
	hub     *Hub
	logger  *slog.Logger
	timeout time.Duration
}

// New returns a Server backed by the given catalog and engine.
func New(c *catalog.Catalog, e *registration.Engine, opts Options) *Server {
	s := &Server{
		catalog: c,
		engine:  e,
		hub:     opts.Hub,
		logger:  opts.Logger,
		timeout: opts.RequestTimeout,
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	return s
}

// Hub returns the stream hub events are fanned out through.
func (s *Server) Hub() *Hub { return s.hub }

// registrationList is the response of the registrations listing.
type registrationList struct {
	Registrations []*model.Registration `json:"registrations"`
	Total         int                   `json:"total"`
}

func (s *Server) listRegistrations(ctx context.Context, eventID string) (*registrationList, error) {
	if _, err := s.catalog.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.catalog.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &registrationList{Registrations: regs, Total: len(regs)}, nil
}
