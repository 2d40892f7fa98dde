package server

import (
	"errors"
	"net/http"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/registration"
	"github.com/alfredjeanlab/evreg/internal/rpc"
)

// apiError is the body of every error response, wrapped as {"error": ...}.
type apiError struct {
	Code      model.Code `json:"code"`
	Message   string     `json:"message"`
	Ambiguous bool       `json:"ambiguous,omitempty"`
}

// classify converts an error from the catalog or the engine into its public
// form. Infrastructure error text never reaches the caller.
func classify(err error) apiError {
	var rej *registration.Rejection
	switch {
	case errors.As(err, &rej):
		return apiError{Code: rej.Code, Message: rej.Message, Ambiguous: rej.Ambiguous}
	case errors.Is(err, catalog.ErrEventNotFound):
		return apiError{Code: model.CodeEventNotFound, Message: err.Error()}
	case errors.Is(err, catalog.ErrInvalidLimit),
		errors.Is(err, catalog.ErrInvalidToken),
		errors.Is(err, catalog.ErrInvalidFilter):
		return apiError{Code: model.CodeInvalidRequest, Message: err.Error()}
	}
	return apiError{Code: model.CodeInternalError, Message: "internal error"}
}

// httpStatus maps a public error to its HTTP status code.
func httpStatus(e apiError) int {
	switch e.Code {
	case model.CodeEventNotFound:
		return http.StatusNotFound
	case model.CodeEventFull, model.CodeDuplicateRegistration, model.CodeInsufficientCapacity:
		return http.StatusConflict
	case model.CodeInvalidEmail, model.CodeInvalidRequest:
		return http.StatusBadRequest
	}
	if e.Ambiguous {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// grpcError converts err into a status error for gRPC handlers.
func grpcError(err error) error {
	e := classify(err)
	return rpc.Error(e.Code, e.Message, e.Ambiguous)
}
