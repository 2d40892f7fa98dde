package registration

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/evreg/internal/model"
)

// Rejection is the error returned for every refused registration. Transports
// map Code to their own status space.
type Rejection struct {
	Code    model.Code
	Message string

	// Ambiguous is set when the store may or may not have applied a write
	// before the request gave up (deadline or cancellation mid-call).
	Ambiguous bool

	cause error
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return r.Code.String()
	}
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// Unwrap returns the underlying infrastructure error, if any.
func (r *Rejection) Unwrap() error { return r.cause }

func reject(code model.Code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

func internal(cause error, ambiguous bool, message string) *Rejection {
	return &Rejection{
		Code:      model.CodeInternalError,
		Message:   message,
		Ambiguous: ambiguous,
		cause:     cause,
	}
}

// CodeOf extracts the rejection code from err. Errors that are not
// rejections map to INTERNAL_ERROR.
func CodeOf(err error) model.Code {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Code
	}
	return model.CodeInternalError
}
