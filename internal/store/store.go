// Package store defines the key-value contract the catalog and registration
// engine are built on. Backends offer single-item operations only: there is
// no multi-item transaction, and ConditionalUpdate is the sole concurrency
// primitive.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by GetItem when no item has the key.
	ErrNotFound = errors.New("item not found")

	// ErrAlreadyExists is returned by PutItem with FailIfExists when the key is taken.
	ErrAlreadyExists = errors.New("item already exists")

	// ErrPreconditionFailed is returned by ConditionalUpdate when the stored
	// value differs from the expected one, or the item is absent.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidCursor is returned when a cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Key is the composite primary key of an item.
type Key struct {
	PartitionKey string `json:"pk"`
	SortKey      string `json:"sk"`
}

// Item is a stored record: a key plus a JSON document body.
type Item struct {
	Key
	Body json.RawMessage
}

// PutOptions controls PutItem.
type PutOptions struct {
	FailIfExists bool
}

// CounterUpdate is a compare-and-swap on one integer attribute of an item's body.
type CounterUpdate struct {
	Field    []string // attribute path inside the body, e.g. {"capacity", "registered"}
	Expected int64
	Next     int64
}

// QueryInput selects items within one partition whose sort key has a prefix.
type QueryInput struct {
	PartitionKey  string
	SortKeyPrefix string
	Cursor        string // resume strictly after this key; empty starts from the beginning
	Limit         int    // page size hint; <= 0 lets the backend choose
}

// ScanInput selects items across all partitions whose sort key equals SortKey.
type ScanInput struct {
	SortKey string
	Cursor  string
	Limit   int
}

// Page is one page of a query or scan. Next is empty when there are no more items.
type Page struct {
	Items []Item
	Next  string
}

// Store is the capability set every backend implements.
type Store interface {
	GetItem(ctx context.Context, key Key) (Item, error)
	PutItem(ctx context.Context, item Item, opts PutOptions) error
	ConditionalUpdate(ctx context.Context, key Key, upd CounterUpdate) error
	Query(ctx context.Context, in QueryInput) (Page, error)
	Scan(ctx context.Context, in ScanInput) (Page, error)

	// Lifecycle
	Close() error
}
