package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/store"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := decode[map[string]string](t, rec); got["status"] != "ok" {
		t.Errorf("body = %v", got)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("response carries no request id")
	}
}

func TestRequestIDPropagated(t *testing.T) {
	env := newTestEnv(t, nil)
	req := newRequest(http.MethodGet, "/v1/health")
	req.Header.Set(RequestIDHeader, "req-123")
	rec := serve(env.handler, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q, want req-123", got)
	}
}

func TestGetEvent(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/events/e3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[struct{ Event *model.Event }](t, rec)
	if got.Event == nil || got.Event.ID != "e3" || got.Event.Capacity.Registered != 1 {
		t.Errorf("event = %+v", got.Event)
	}

	rec = env.do(t, http.MethodGet, "/v1/events/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if e := decode[errorBody](t, rec).Error; e.Code != model.CodeEventNotFound {
		t.Errorf("code = %s", e.Code)
	}
}

func TestListEvents(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"e1", "e2", "e3"}},
		{"?category=tech", []string{"e1", "e3"}},
		{"?status=full", []string{"e2"}},
		{"?status=available&search=rust", []string{"e3"}},
		{"?search=nothing-matches", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/v1/events"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			page := decode[catalog.EventPage](t, rec)
			var ids []string
			for _, e := range page.Events {
				ids = append(ids, e.ID)
			}
			if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
			if page.Total != len(tt.want) {
				t.Errorf("total = %d, want %d", page.Total, len(tt.want))
			}
		})
	}
}

func TestListEvents_Pagination(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/v1/events?limit=2", nil)
	first := decode[catalog.EventPage](t, rec)
	if len(first.Events) != 2 || first.NextToken == "" {
		t.Fatalf("first page = %d events, token %q", len(first.Events), first.NextToken)
	}

	rec = env.do(t, http.MethodGet, "/v1/events?limit=2&nextToken="+first.NextToken, nil)
	second := decode[catalog.EventPage](t, rec)
	if len(second.Events) != 1 || second.Events[0].ID != "e3" {
		t.Fatalf("second page = %+v", second.Events)
	}
	if strings.Contains(rec.Body.String(), "nextToken") {
		t.Errorf("last page carries a token: %s", rec.Body)
	}
}

func TestListEvents_InvalidQuery(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, q := range []string{
		"?limit=0",
		"?limit=101",
		"?limit=ten",
		"?status=sold-out",
		"?nextToken=not*a*token",
		"?nextToken=Zm9v",
	} {
		t.Run(q, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/v1/events"+q, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
			if e := decode[errorBody](t, rec).Error; e.Code != model.CodeInvalidRequest {
				t.Errorf("code = %s", e.Code)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/events/e1/registrations", map[string]any{
		"attendeeEmail": "ann@example.com",
		"attendeeName":  "Ann",
		"groupSize":     3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	res := decode[registration.Result](t, rec)
	if !strings.HasPrefix(res.RegistrationID, "reg_") {
		t.Errorf("registrationId = %q", res.RegistrationID)
	}
	if res.Event.Capacity.Registered != 3 || res.Attendee.GroupSize != 3 {
		t.Errorf("result = %+v", res)
	}

	rec = env.do(t, http.MethodGet, "/v1/events/e1/registrations", nil)
	list := decode[registrationList](t, rec)
	if list.Total != 1 || list.Registrations[0].AttendeeEmail != "ann@example.com" {
		t.Errorf("registrations = %+v", list)
	}
}

func TestRegister_GroupSizeDefaultsToOne(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/v1/events/e1/registrations", map[string]any{
		"attendeeEmail": "bo@example.com",
		"attendeeName":  "Bo",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if res := decode[registration.Result](t, rec); res.Attendee.GroupSize != 1 || res.Event.Capacity.Registered != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRegister_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)
	first := map[string]any{"attendeeEmail": "ann@example.com", "attendeeName": "Ann"}
	if rec := env.do(t, http.MethodPost, "/v1/events/e3/registrations", first); rec.Code != http.StatusCreated {
		t.Fatalf("seed registration: %d %s", rec.Code, rec.Body)
	}

	tests := []struct {
		name   string
		event  string
		body   map[string]any
		status int
		code   model.Code
	}{
		{"unknown event", "nope", first, http.StatusNotFound, model.CodeEventNotFound},
		{"full", "e2", first, http.StatusConflict, model.CodeEventFull},
		{"duplicate", "e3", first, http.StatusConflict, model.CodeDuplicateRegistration},
		{"too large", "e3", map[string]any{"attendeeEmail": "cy@example.com", "attendeeName": "Cy", "groupSize": 2}, http.StatusConflict, model.CodeInsufficientCapacity},
		{"bad email", "e1", map[string]any{"attendeeEmail": "not-an-email", "attendeeName": "Cy"}, http.StatusBadRequest, model.CodeInvalidEmail},
		{"missing name", "e1", map[string]any{"attendeeEmail": "cy@example.com"}, http.StatusBadRequest, model.CodeInvalidRequest},
		{"zero group", "e1", map[string]any{"attendeeEmail": "cy@example.com", "attendeeName": "Cy", "groupSize": 0}, http.StatusBadRequest, model.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/events/"+tt.event+"/registrations", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if e := decode[errorBody](t, rec).Error; e.Code != tt.code || e.Message == "" {
				t.Errorf("error = %+v, want code %s", e, tt.code)
			}
		})
	}
}

func TestRegister_InvalidJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	req := newRequest(http.MethodPost, "/v1/events/e1/registrations")
	req.Body = http.NoBody
	rec := serve(env.handler, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegister_AmbiguousOutcome(t *testing.T) {
	env := newTestEnv(t, func(s store.Store) store.Store {
		return &failingStore{Store: s, err: context.DeadlineExceeded}
	})
	rec := env.do(t, http.MethodPost, "/v1/events/e1/registrations", map[string]any{
		"attendeeEmail": "ann@example.com", "attendeeName": "Ann",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 (body %s)", rec.Code, rec.Body)
	}
	e := decode[errorBody](t, rec).Error
	if e.Code != model.CodeInternalError || !e.Ambiguous {
		t.Errorf("error = %+v, want ambiguous INTERNAL_ERROR", e)
	}
}

func TestRegister_InfrastructureErrorIsNotLeaked(t *testing.T) {
	env := newTestEnv(t, func(s store.Store) store.Store {
		return &failingStore{Store: s, err: errors.New("dial tcp 10.0.0.7:5432: connection refused")}
	})
	rec := env.do(t, http.MethodPost, "/v1/events/e1/registrations", map[string]any{
		"attendeeEmail": "ann@example.com", "attendeeName": "Ann",
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.7") {
		t.Errorf("body leaks infrastructure detail: %s", rec.Body)
	}
	if e := decode[errorBody](t, rec).Error; e.Ambiguous {
		t.Error("non-context failure reported as ambiguous")
	}
}

func TestListRegistrations_UnknownEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/v1/events/nope/registrations", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestPanicRecovery(t *testing.T) {
	s := New(nil, nil, Options{Logger: quietLogger})
	h := s.requestMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := serve(h, newRequest(http.MethodGet, "/v1/anything"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if e := decode[errorBody](t, rec).Error; e.Code != model.CodeInternalError {
		t.Errorf("code = %s", e.Code)
	}
}

func TestRequestTimeoutApplied(t *testing.T) {
	s := New(nil, nil, Options{Logger: quietLogger})
	var hasDeadline bool
	h := s.requestMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	serve(h, newRequest(http.MethodGet, "/v1/events"))
	if !hasDeadline {
		t.Error("request context has no deadline")
	}
	serve(h, newRequest(http.MethodGet, streamPath))
	if hasDeadline {
		t.Error("stream request context has a deadline")
	}
}
