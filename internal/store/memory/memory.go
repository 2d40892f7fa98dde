// Package memory implements store.Store in process memory. It backs the
// development mode of the server and most package tests.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alfredjeanlab/evreg/internal/store"
)

// DefaultLimit is the page size used when a query or scan gives none.
const DefaultLimit = 100

// Store is a mutex-guarded ordered map of items.
type Store struct {
	mu    sync.RWMutex
	items map[store.Key][]byte
	keys  []store.Key // sorted by (PartitionKey, SortKey)
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{items: make(map[store.Key][]byte)}
}

func less(a, b store.Key) bool {
	if a.PartitionKey != b.PartitionKey {
		return a.PartitionKey < b.PartitionKey
	}
	return a.SortKey < b.SortKey
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) GetItem(ctx context.Context, key store.Key) (store.Item, error) {
	if err := ctx.Err(); err != nil {
		return store.Item{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.items[key]
	if !ok {
		return store.Item{}, store.ErrNotFound
	}
	return store.Item{Key: key, Body: bytes.Clone(body)}, nil
}

func (s *Store) PutItem(ctx context.Context, item store.Item, opts store.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(item.Body) {
		return fmt.Errorf("put %s/%s: body is not valid JSON", item.PartitionKey, item.SortKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.Key]; ok {
		if opts.FailIfExists {
			return store.ErrAlreadyExists
		}
	} else {
		i := sort.Search(len(s.keys), func(i int) bool { return !less(s.keys[i], item.Key) })
		s.keys = append(s.keys, store.Key{})
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = item.Key
	}
	s.items[item.Key] = bytes.Clone(item.Body)
	return nil
}

func (s *Store) ConditionalUpdate(ctx context.Context, key store.Key, upd store.CounterUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(upd.Field) == 0 {
		return fmt.Errorf("conditional update: empty field path")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.items[key]
	if !ok {
		return store.ErrPreconditionFailed
	}
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode %s/%s: %w", key.PartitionKey, key.SortKey, err)
	}
	cur, ok := store.GetPath(doc, upd.Field)
	if !ok || cur != upd.Expected {
		return store.ErrPreconditionFailed
	}
	store.SetPath(doc, upd.Field, upd.Next)
	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", key.PartitionKey, key.SortKey, err)
	}
	s.items[key] = updated
	return nil
}

func (s *Store) Query(ctx context.Context, in store.QueryInput) (store.Page, error) {
	return s.collect(ctx, in.Cursor, in.Limit, func(k store.Key) bool {
		return k.PartitionKey == in.PartitionKey && strings.HasPrefix(k.SortKey, in.SortKeyPrefix)
	})
}

func (s *Store) Scan(ctx context.Context, in store.ScanInput) (store.Page, error) {
	return s.collect(ctx, in.Cursor, in.Limit, func(k store.Key) bool {
		return k.SortKey == in.SortKey
	})
}

// collect walks keys in order, starting strictly after the cursor, and
// returns up to limit matching items.
func (s *Store) collect(ctx context.Context, cursor string, limit int, match func(store.Key) bool) (store.Page, error) {
	if err := ctx.Err(); err != nil {
		return store.Page{}, err
	}
	after, hasCursor, err := store.DecodeCursor(cursor)
	if err != nil {
		return store.Page{}, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if hasCursor {
		start = sort.Search(len(s.keys), func(i int) bool { return less(after, s.keys[i]) })
	}

	var page store.Page
	for i := start; i < len(s.keys); i++ {
		k := s.keys[i]
		if !match(k) {
			continue
		}
		if len(page.Items) == limit {
			page.Next = store.EncodeCursor(page.Items[len(page.Items)-1].Key)
			break
		}
		page.Items = append(page.Items, store.Item{Key: k, Body: bytes.Clone(s.items[k])})
	}
	return page, nil
}
