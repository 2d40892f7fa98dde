// Package catalog implements the read side of the event store: single-event
// lookup, filtered and paginated event listing, and registration range
// queries over an event partition.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/store"
)

const (
	DefaultLimit           = 25
	MaxLimit               = 100
	DefaultOverfetchFactor = 3
	DefaultMaxScanRounds   = 4

	// maxBatch caps a single scan round regardless of limit and overfetch.
	maxBatch = 300

	registrationPageSize = 100
)

var (
	// ErrEventNotFound is returned when no metadata record exists for an event id.
	ErrEventNotFound = errors.New("event not found")

	// ErrInvalidLimit is returned when a list limit is outside [1, MaxLimit].
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidToken is returned when a continuation token cannot be decoded.
	ErrInvalidToken = errors.New("invalid continuation token")

	// ErrInvalidFilter is returned when a list filter names an unknown status.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrEventExists is returned by CreateEvent when the id is taken.
	ErrEventExists = errors.New("event already exists")
)

// Options configures a Catalog. Zero values select the defaults.
type Options struct {
	OverfetchFactor int
	MaxScanRounds   int
	Logger          *slog.Logger
}

// Catalog answers read queries over events and registrations.
type Catalog struct {
	store     store.Store
	overfetch int
	maxRounds int
	logger    *slog.Logger
}

// New creates a Catalog over s.
func New(s store.Store, opts Options) *Catalog {
	c := &Catalog{
		store:     s,
		overfetch: opts.OverfetchFactor,
		maxRounds: opts.MaxScanRounds,
		logger:    opts.Logger,
	}
	if c.overfetch < 1 {
		c.overfetch = DefaultOverfetchFactor
	}
	if c.maxRounds < 1 {
		c.maxRounds = DefaultMaxScanRounds
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// EventPage is one page of ListEvents. Total counts the events in this page.
type EventPage struct {
	Events    []*model.Event `json:"events"`
	Total     int            `json:"total"`
	NextToken string         `json:"nextToken,omitempty"`
}

// GetEvent returns the event with the given id.
func (c *Catalog) GetEvent(ctx context.Context, eventID string) (*model.Event, error) {
	item, err := c.store.GetItem(ctx, EventKey(eventID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	return DecodeEvent(item)
}

// PutEvent writes an event's metadata record, replacing any existing one.
// Only seeding uses it; registrations never rewrite the whole record.
func (c *Catalog) PutEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		return fmt.Errorf("put event: empty id")
	}
	item, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	if err := c.store.PutItem(ctx, item, store.PutOptions{}); err != nil {
		return fmt.Errorf("put event %s: %w", e.ID, err)
	}
	return nil
}

// CreateEvent writes an event's metadata record only if none exists, so
// reseeding never resets a live registered counter.
func (c *Catalog) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.ID == "" {
		return fmt.Errorf("create event: empty id")
	}
	item, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	err = c.store.PutItem(ctx, item, store.PutOptions{FailIfExists: true})
	if errors.Is(err, store.ErrAlreadyExists) {
		return fmt.Errorf("%w: %s", ErrEventExists, e.ID)
	}
	if err != nil {
		return fmt.Errorf("create event %s: %w", e.ID, err)
	}
	return nil
}

type candidate struct {
	key   store.Key
	event *model.Event
}

// ListEvents scans event metadata records starting after token, keeps those
// matching filter, and returns at most limit of them.
//
// Filters run after retrieval, so each scan round over-fetches. Rounds stop
// once limit matches are buffered, the scan is exhausted, or the round budget
// is spent. The returned token resumes after the last event in the page when
// the buffer overflowed, and at the scan position otherwise, so consecutive
// pages never overlap for a fixed dataset.
func (c *Catalog) ListEvents(ctx context.Context, filter model.EventFilter, limit int, token string) (*EventPage, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidLimit, limit, MaxLimit)
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}
	if _, _, err := store.DecodeCursor(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	batch := min(limit*c.overfetch, maxBatch)

	var (
		matched []candidate
		seen    = make(map[string]bool)
		cursor  = token
		more    = true
		rounds  int
	)
	for more && len(matched) < limit && rounds < c.maxRounds {
		page, err := c.store.Scan(ctx, store.ScanInput{
			SortKey: MetadataSortKey,
			Cursor:  cursor,
			Limit:   batch,
		})
		if errors.Is(err, store.ErrInvalidCursor) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if err != nil {
			return nil, fmt.Errorf("scan events: %w", err)
		}
		rounds++

		for _, item := range page.Items {
			e, err := DecodeEvent(item)
			if err != nil {
				c.logger.Warn("skipping undecodable event record", "pk", item.PartitionKey, "error", err)
				continue
			}
			if seen[e.ID] || !filter.Matches(e) {
				continue
			}
			seen[e.ID] = true
			matched = append(matched, candidate{key: item.Key, event: e})
		}
		cursor = page.Next
		more = page.Next != ""
	}

	result := &EventPage{Events: []*model.Event{}}
	switch {
	case len(matched) > limit:
		matched = matched[:limit]
		result.NextToken = store.EncodeCursor(matched[limit-1].key)
	case more:
		result.NextToken = cursor
	}
	for _, m := range matched {
		result.Events = append(result.Events, m.event)
	}
	result.Total = len(result.Events)

	c.logger.Debug("listed events",
		"limit", limit, "rounds", rounds, "returned", result.Total, "has_next", result.NextToken != "")
	return result, nil
}

// EachRegistration walks the registrations of an event in sort-key order,
// fetching pages lazily. fn returns false to stop early.
func (c *Catalog) EachRegistration(ctx context.Context, eventID string, fn func(*model.Registration) bool) error {
	cursor := ""
	for {
		page, err := c.store.Query(ctx, store.QueryInput{
			PartitionKey:  EventPartition(eventID),
			SortKeyPrefix: RegistrationSortKeyPrefix,
			Cursor:        cursor,
			Limit:         registrationPageSize,
		})
		if err != nil {
			return fmt.Errorf("query registrations of %s: %w", eventID, err)
		}
		for _, item := range page.Items {
			r, err := DecodeRegistration(item)
			if err != nil {
				return err
			}
			if !fn(r) {
				return nil
			}
		}
		if page.Next == "" {
			return nil
		}
		cursor = page.Next
	}
}

// ListRegistrations returns every registration of an event. It does not
// check that the event exists.
func (c *Catalog) ListRegistrations(ctx context.Context, eventID string) ([]*model.Registration, error) {
	regs := []*model.Registration{}
	err := c.EachRegistration(ctx, eventID, func(r *model.Registration) bool {
		regs = append(regs, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	return regs, nil
}
