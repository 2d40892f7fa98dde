package model

import "strings"

// EventFilter holds criteria for listing events. Zero values match everything.
type EventFilter struct {
	Category string `json:"category,omitempty"` // exact match on category id
	Search   string `json:"search,omitempty"`   // case-insensitive substring of title or description
	Status   Status `json:"status,omitempty"`
}

// Matches reports whether the event satisfies every criterion of the filter.
func (f EventFilter) Matches(e *Event) bool {
	if f.Category != "" && e.Category.ID != f.Category {
		return false
	}
	if f.Status != "" && e.Status() != f.Status {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Title), needle) &&
			!strings.Contains(strings.ToLower(e.Description), needle) {
			return false
		}
	}
	return true
}
