package model

import "time"

// Attendee identifies who registered and for how many seats.
type Attendee struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	GroupSize int    `json:"groupSize"`
}

// Registration records one successful registration against an event.
// It is immutable once written.
type Registration struct {
	ID            string    `json:"registrationId"`
	EventID       string    `json:"eventId"`
	AttendeeEmail string    `json:"attendeeEmail"`
	AttendeeName  string    `json:"attendeeName"`
	GroupSize     int       `json:"groupSize"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// Attendee returns the attendee view of the registration.
func (r *Registration) Attendee() Attendee {
	return Attendee{
		Email:     r.AttendeeEmail,
		Name:      r.AttendeeName,
		GroupSize: r.GroupSize,
	}
}
