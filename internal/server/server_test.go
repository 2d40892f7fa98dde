package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/events"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/store"
	"github.com/alfredjeanlab/evreg/internal/store/memory"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// failingStore fails every conditional update with err.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) ConditionalUpdate(context.Context, store.Key, store.CounterUpdate) error {
	return f.err
}

type testEnv struct {
	srv     *Server
	handler http.Handler
	catalog *catalog.Catalog
}

// newTestEnv builds a server over a memory store seeded with:
//
//	e1 "Go Meetup"  tech   10 seats, 0 taken
//	e2 "Jazz Night" music   2 seats, 2 taken (full)
//	e3 "Rust Conf"  tech    3 seats, 1 taken
func newTestEnv(t *testing.T, wrap func(store.Store) store.Store) *testEnv {
	t.Helper()
	var s store.Store = memory.New()
	c := catalog.New(s, catalog.Options{Logger: quietLogger})
	for _, e := range []*model.Event{
		{ID: "e1", Title: "Go Meetup", Category: model.Category{ID: "tech"}, Capacity: model.Capacity{Max: 10}},
		{ID: "e2", Title: "Jazz Night", Category: model.Category{ID: "music"}, Capacity: model.Capacity{Max: 2, Registered: 2}},
		{ID: "e3", Title: "Rust Conf", Category: model.Category{ID: "tech"}, Capacity: model.Capacity{Max: 3, Registered: 1}},
	} {
		if err := c.PutEvent(context.Background(), e); err != nil {
			t.Fatalf("seeding %s: %v", e.ID, err)
		}
	}
	if wrap != nil {
		s = wrap(s)
	}

	hub := NewHub()
	t.Cleanup(func() { _ = hub.Close() })
	engine := registration.New(s, registration.Options{
		Publisher: events.MultiPublisher{hub},
		Logger:    quietLogger,
	})
	srv := New(c, engine, Options{Hub: hub, Logger: quietLogger, RequestTimeout: 5 * time.Second})
	return &testEnv{srv: srv, handler: srv.NewHTTPHandler(), catalog: c}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	return serve(env.handler, httptest.NewRequest(method, path, rd))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

type errorBody struct {
	Error apiError `json:"error"`
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, nil, Options{})
	if s.Hub() == nil || s.logger == nil || s.timeout != DefaultRequestTimeout {
		t.Errorf("defaults not applied: hub=%v logger=%v timeout=%v", s.Hub(), s.logger, s.timeout)
	}
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
