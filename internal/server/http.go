package server

import (
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
)

const streamPath = "/v1/stream"

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/{id}", s.handleGetEvent)
	mux.HandleFunc("POST /v1/events/{id}/registrations", s.handleRegister)
	mux.HandleFunc("GET /v1/events/{id}/registrations", s.handleListRegistrations)
	mux.HandleFunc("GET "+streamPath, s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return s.requestMiddleware(mux)
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeAPIError(w, apiError{Code: model.CodeInvalidRequest, Message: err.Error()})
		return
	}
	page, err := s.catalog.ListEvents(r.Context(), q.filter(), q.limit(), q.NextToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetEvent handles GET /v1/events/{id}.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.catalog.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.Event{"event": event})
}

// registerBody is the body of POST /v1/events/{id}/registrations.
type registerBody struct {
	AttendeeEmail string `json:"attendeeEmail"`
	AttendeeName  string `json:"attendeeName"`
	GroupSize     *int   `json:"groupSize"`
}

// handleRegister handles POST /v1/events/{id}/registrations.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeAPIError(w, apiError{Code: model.CodeInvalidRequest, Message: "invalid JSON body"})
		return
	}
	req := registration.Request{
		EventID:       r.PathValue("id"),
		AttendeeEmail: body.AttendeeEmail,
		AttendeeName:  body.AttendeeName,
		GroupSize:     1,
	}
	if body.GroupSize != nil {
		req.GroupSize = *body.GroupSize
	}

	res, err := s.engine.Register(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// handleListRegistrations handles GET /v1/events/{id}/registrations.
func (s *Server) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	list, err := s.listRegistrations(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// fail writes the error envelope for err, logging errors that are not the
// caller's fault.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.Code == model.CodeInternalError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"ambiguous", e.Ambiguous,
			"error", err,
		)
	}
	writeAPIError(w, e)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeAPIError writes the error envelope with the status its code maps to.
func writeAPIError(w http.ResponseWriter, e apiError) {
	writeJSON(w, httpStatus(e), map[string]apiError{"error": e})
}
