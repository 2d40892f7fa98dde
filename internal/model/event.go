package model

import "time"

// Status is the availability of an event, derived from its capacity.
type Status string

const (
	StatusAvailable Status = "available"
	StatusFull      Status = "full"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusFull:
		return true
	}
	return false
}

// Capacity tracks how many seats an event offers and how many are taken.
// Registered is the only mutable field of an event.
type Capacity struct {
	Max        int `json:"max"`
	Registered int `json:"registered"`
}

// Remaining returns the number of seats still available.
func (c Capacity) Remaining() int {
	if c.Registered >= c.Max {
		return 0
	}
	return c.Max - c.Registered
}

// IsFull reports whether no seats remain.
func (c Capacity) IsFull() bool {
	return c.Registered >= c.Max
}

// Fits reports whether a group of the given size can still be seated.
// It compares against the remaining seats so a huge group cannot wrap the sum.
func (c Capacity) Fits(groupSize int) bool {
	return groupSize <= c.Max-c.Registered
}

// Category classifies an event. Filters match on ID.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Pricing is the ticket price of an event.
type Pricing struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

// Location is where an event takes place.
type Location struct {
	Venue   string `json:"venue,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Event is a bookable catalog entry. Everything except Capacity.Registered
// is written once by the seeding process.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Category    Category  `json:"category"`
	Pricing     Pricing   `json:"pricing"`
	Location    Location  `json:"location"`
	Capacity    Capacity  `json:"capacity"`
}

// Status derives the availability of the event from its capacity.
func (e *Event) Status() Status {
	if e.Capacity.IsFull() {
		return StatusFull
	}
	return StatusAvailable
}
