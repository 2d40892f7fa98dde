package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string
	query       url.Values
	body        string
	contentType string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.Query()
	h.contentType = r.Header.Get("Content-Type")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL + "/")
}

func TestHTTPClient_ListEvents(t *testing.T) {
	h := &testHandler{responseBody: `{
		"events": [{"id": "e1", "title": "Go Meetup", "capacity": {"max": 10, "registered": 4}}],
		"total": 1,
		"nextToken": "tok"
	}`}
	c := newTestClient(t, h)

	page, err := c.ListEvents(context.Background(), rpc.ListEventsRequest{
		Category: "tech", Status: "available", Limit: 5, NextToken: "abc",
	})
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}

	if h.method != http.MethodGet || h.path != "/v1/events" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	for k, want := range map[string]string{"category": "tech", "status": "available", "limit": "5", "nextToken": "abc"} {
		if got := h.query.Get(k); got != want {
			t.Errorf("query %s = %q, want %q", k, got, want)
		}
	}
	if h.query.Has("search") {
		t.Error("empty search sent")
	}

	if page.Total != 1 || page.NextToken != "tok" || page.Events[0].Capacity.Registered != 4 {
		t.Errorf("page = %+v", page)
	}
}

func TestHTTPClient_ListEvents_NoQuery(t *testing.T) {
	h := &testHandler{responseBody: `{"events": [], "total": 0}`}
	c := newTestClient(t, h)
	if _, err := c.ListEvents(context.Background(), rpc.ListEventsRequest{}); err != nil {
		t.Fatal(err)
	}
	if len(h.query) != 0 {
		t.Errorf("query = %v, want none", h.query)
	}
}

func TestHTTPClient_GetEvent_EscapesID(t *testing.T) {
	h := &testHandler{responseBody: `{"event": {"id": "a/b", "title": "Slashed"}}`}
	c := newTestClient(t, h)

	e, err := c.GetEvent(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if h.rawPath != "/v1/events/a%2Fb" {
		t.Errorf("raw path = %q", h.rawPath)
	}
	if e.Title != "Slashed" {
		t.Errorf("event = %+v", e)
	}
}

func TestHTTPClient_Register(t *testing.T) {
	h := &testHandler{
		statusCode: http.StatusCreated,
		responseBody: `{
			"registrationId": "reg_1",
			"event": {"id": "e1", "capacity": {"max": 10, "registered": 2}},
			"attendee": {"email": "ann@example.com", "name": "Ann", "groupSize": 2}
		}`,
	}
	c := newTestClient(t, h)

	res, err := c.Register(context.Background(), registration.Request{
		EventID: "e1", AttendeeEmail: "ann@example.com", AttendeeName: "Ann", GroupSize: 2,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/events/e1/registrations" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q", h.contentType)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(h.body), &body); err != nil {
		t.Fatal(err)
	}
	if body["groupSize"] != float64(2) || body["attendeeEmail"] != "ann@example.com" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["eventId"]; ok {
		t.Error("eventId sent in the body; it belongs in the path")
	}
	if res.RegistrationID != "reg_1" || res.Attendee.GroupSize != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPClient_Register_OmitsZeroGroupSize(t *testing.T) {
	h := &testHandler{statusCode: http.StatusCreated, responseBody: `{"registrationId": "reg_1"}`}
	c := newTestClient(t, h)
	if _, err := c.Register(context.Background(), registration.Request{EventID: "e1"}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(h.body, "groupSize") {
		t.Errorf("body = %s", h.body)
	}
}

func TestHTTPClient_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   APIError
	}{
		{
			name:   "rejection",
			status: http.StatusConflict,
			body:   `{"error": {"code": "EVENT_FULL", "message": "event is full (2/2)"}}`,
			want:   APIError{StatusCode: 409, Code: model.CodeEventFull, Message: "event is full (2/2)"},
		},
		{
			name:   "ambiguous",
			status: http.StatusServiceUnavailable,
			body:   `{"error": {"code": "INTERNAL_ERROR", "message": "capacity update failed", "ambiguous": true}}`,
			want:   APIError{StatusCode: 503, Code: model.CodeInternalError, Message: "capacity update failed", Ambiguous: true},
		},
		{
			name:   "plain text",
			status: http.StatusBadGateway,
			body:   "upstream down\n",
			want:   APIError{StatusCode: 502, Message: "upstream down"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &testHandler{statusCode: tt.status, responseBody: tt.body})
			_, err := c.GetEvent(context.Background(), "e1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %T %v, want *APIError", err, err)
			}
			if *apiErr != tt.want {
				t.Errorf("err = %+v, want %+v", *apiErr, tt.want)
			}
		})
	}
}

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		err  APIError
		want string
	}{
		{APIError{Code: model.CodeEventFull, Message: "full"}, "EVENT_FULL: full"},
		{APIError{Code: model.CodeInternalError, Message: "x", Ambiguous: true}, "INTERNAL_ERROR: x (outcome unknown)"},
		{APIError{StatusCode: 502, Message: "bad"}, "server error 502: bad"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestHTTPClient_Stream(t *testing.T) {
	mux := http.NewServeMux()
	var topics string
	mux.HandleFunc("GET /v1/stream", func(w http.ResponseWriter, r *http.Request) {
		topics = r.URL.Query().Get("topics")
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "id:1\nevent:evreg.registration.created\ndata:{}\n\n")
	})
	c := newTestClient(t, mux)

	body, err := c.Stream(context.Background(), []string{"evreg.registration.*", "evreg.capacity.>"})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "event:evreg.registration.created") {
		t.Errorf("stream = %q", data)
	}
	if topics != "evreg.registration.*,evreg.capacity.>" {
		t.Errorf("topics = %q", topics)
	}
}

func TestHTTPClient_Health(t *testing.T) {
	c := newTestClient(t, &testHandler{responseBody: `{"status": "ok"}`})
	got, err := c.Health(context.Background())
	if err != nil || got != "ok" {
		t.Fatalf("Health() = %q, %v", got, err)
	}
}
