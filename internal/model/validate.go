package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// emailPattern accepts local@domain.tld with no whitespace and exactly one "@".
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Attendee validation failures. Match them with errors.Is.
var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrNameRequired     = errors.New("is required")
	ErrInvalidGroupSize = errors.New("must be a positive integer")
)

// FieldError is one failed rule on a named request field.
type FieldError struct {
	Field  string
	Err    error
	Detail string
}

func (e *FieldError) Error() string {
	if e.Detail == "" {
		return e.Field + ": " + e.Err.Error()
	}
	return fmt.Sprintf("%s: %v (%s)", e.Field, e.Err, e.Detail)
}

func (e *FieldError) Unwrap() error { return e.Err }

// FieldErrors collects every failed rule of one request.
type FieldErrors []*FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, e := range fe {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) Unwrap() []error {
	errs := make([]error, len(fe))
	for i, e := range fe {
		errs[i] = e
	}
	return errs
}

// ValidEmail reports whether s has the shape of an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidateAttendee checks the attendee part of a registration request and
// returns FieldErrors listing every failure, or nil.
func ValidateAttendee(a Attendee) error {
	var errs FieldErrors
	if !ValidEmail(a.Email) {
		errs = append(errs, &FieldError{Field: "attendeeEmail", Err: ErrInvalidEmail, Detail: fmt.Sprintf("%q", a.Email)})
	}
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, &FieldError{Field: "attendeeName", Err: ErrNameRequired})
	}
	if a.GroupSize < 1 {
		errs = append(errs, &FieldError{Field: "groupSize", Err: ErrInvalidGroupSize, Detail: fmt.Sprintf("got %d", a.GroupSize)})
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
