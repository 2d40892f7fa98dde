package rpc

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/evreg/internal/model"
)

// StatusCode maps a rejection code to its gRPC status code. An ambiguous
// internal error becomes Unavailable so callers know a retry may double-book.
func StatusCode(code model.Code, ambiguous bool) codes.Code {
	switch code {
	case model.CodeEventNotFound:
		return codes.NotFound
	case model.CodeDuplicateRegistration:
		return codes.AlreadyExists
	case model.CodeEventFull, model.CodeInsufficientCapacity:
		return codes.FailedPrecondition
	case model.CodeInvalidEmail, model.CodeInvalidRequest:
		return codes.InvalidArgument
	}
	if ambiguous {
		return codes.Unavailable
	}
	return codes.Internal
}

// Error builds a status error whose message is prefixed with the machine code.
func Error(code model.Code, message string, ambiguous bool) error {
	return status.Error(StatusCode(code, ambiguous), string(code)+": "+message)
}

// ParseError recovers the machine code and message from a status error
// produced by Error. ok is false for errors without a known code prefix.
func ParseError(err error) (code model.Code, message string, ambiguous bool, ok bool) {
	st, isStatus := status.FromError(err)
	if !isStatus {
		return "", "", false, false
	}
	prefix, rest, found := strings.Cut(st.Message(), ": ")
	if !found || !model.Code(prefix).IsValid() {
		return "", st.Message(), false, false
	}
	code = model.Code(prefix)
	return code, rest, code == model.CodeInternalError && st.Code() == codes.Unavailable, true
}
