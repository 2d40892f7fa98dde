package model

// Code is a stable, machine-readable outcome of a rejected request.
type Code string

const (
	CodeEventNotFound         Code = "EVENT_NOT_FOUND"
	CodeEventFull             Code = "EVENT_FULL"
	CodeDuplicateRegistration Code = "DUPLICATE_REGISTRATION"
	CodeInvalidEmail          Code = "INVALID_EMAIL"
	CodeInvalidRequest        Code = "INVALID_REQUEST"
	CodeInsufficientCapacity  Code = "INSUFFICIENT_CAPACITY"
	CodeInternalError         Code = "INTERNAL_ERROR"
)

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// IsValid checks whether the code is a known value.
func (c Code) IsValid() bool {
	switch c {
	case CodeEventNotFound, CodeEventFull, CodeDuplicateRegistration,
		CodeInvalidEmail, CodeInvalidRequest, CodeInsufficientCapacity,
		CodeInternalError:
		return true
	}
	return false
}
