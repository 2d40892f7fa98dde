package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alfredjeanlab/evreg/internal/store"
)

func put(t *testing.T, s *Store, pk, sk, body string) {
	t.Helper()
	item := store.Item{Key: store.Key{PartitionKey: pk, SortKey: sk}, Body: json.RawMessage(body)}
	if err := s.PutItem(context.Background(), item, store.PutOptions{}); err != nil {
		t.Fatalf("PutItem(%s/%s): %v", pk, sk, err)
	}
}

func TestGetItem(t *testing.T) {
	s := New()
	put(t, s, "EVENT#1", "METADATA", `{"id":"1"}`)

	item, err := s.GetItem(context.Background(), store.Key{PartitionKey: "EVENT#1", SortKey: "METADATA"})
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if string(item.Body) != `{"id":"1"}` {
		t.Errorf("body = %s", item.Body)
	}

	_, err = s.GetItem(context.Background(), store.Key{PartitionKey: "EVENT#2", SortKey: "METADATA"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetItem(missing) error = %v, want ErrNotFound", err)
	}
}

func TestPutItem_FailIfExists(t *testing.T) {
	s := New()
	ctx := context.Background()
	item := store.Item{Key: store.Key{PartitionKey: "EVENT#1", SortKey: "REGISTRATION#a"}, Body: json.RawMessage(`{}`)}

	if err := s.PutItem(ctx, item, store.PutOptions{FailIfExists: true}); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if err := s.PutItem(ctx, item, store.PutOptions{FailIfExists: true}); !errors.Is(err, store.ErrAlreadyExists) {
		t.Fatalf("second put error = %v, want ErrAlreadyExists", err)
	}
	if err := s.PutItem(ctx, item, store.PutOptions{}); err != nil {
		t.Fatalf("overwrite without FailIfExists: %v", err)
	}
}

func TestPutItem_InvalidJSON(t *testing.T) {
	s := New()
	item := store.Item{Key: store.Key{PartitionKey: "p", SortKey: "s"}, Body: json.RawMessage(`{`)}
	if err := s.PutItem(context.Background(), item, store.PutOptions{}); err == nil {
		t.Fatal("expected error for invalid JSON body")
	}
}

func TestConditionalUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()
	key := store.Key{PartitionKey: "EVENT#1", SortKey: "METADATA"}
	put(t, s, key.PartitionKey, key.SortKey, `{"capacity":{"max":10,"registered":4}}`)
	field := []string{"capacity", "registered"}

	if err := s.ConditionalUpdate(ctx, key, store.CounterUpdate{Field: field, Expected: 3, Next: 5}); !errors.Is(err, store.ErrPreconditionFailed) {
		t.Fatalf("stale expected value: error = %v, want ErrPreconditionFailed", err)
	}
	if err := s.ConditionalUpdate(ctx, key, store.CounterUpdate{Field: field, Expected: 4, Next: 6}); err != nil {
		t.Fatalf("ConditionalUpdate: %v", err)
	}

	item, _ := s.GetItem(ctx, key)
	var doc struct {
		Capacity struct{ Max, Registered int }
	}
	if err := json.Unmarshal(item.Body, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Capacity.Registered != 6 || doc.Capacity.Max != 10 {
		t.Errorf("capacity = %+v, want max=10 registered=6", doc.Capacity)
	}

	missing := store.Key{PartitionKey: "EVENT#2", SortKey: "METADATA"}
	if err := s.ConditionalUpdate(ctx, missing, store.CounterUpdate{Field: field, Expected: 0, Next: 1}); !errors.Is(err, store.ErrPreconditionFailed) {
		t.Errorf("missing item: error = %v, want ErrPreconditionFailed", err)
	}
}

func TestConditionalUpdate_ConcurrentSingleWinner(t *testing.T) {
	s := New()
	key := store.Key{PartitionKey: "EVENT#1", SortKey: "METADATA"}
	put(t, s, key.PartitionKey, key.SortKey, `{"capacity":{"max":1,"registered":0}}`)

	const n = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.ConditionalUpdate(context.Background(), key, store.CounterUpdate{
				Field: []string{"capacity", "registered"}, Expected: 0, Next: 1,
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestQuery_PrefixAndPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	put(t, s, "EVENT#1", "METADATA", `{}`)
	for i := 0; i < 5; i++ {
		put(t, s, "EVENT#1", fmt.Sprintf("REGISTRATION#%d", i), `{}`)
	}
	put(t, s, "EVENT#2", "REGISTRATION#x", `{}`)

	var got []string
	cursor := ""
	pages := 0
	for {
		page, err := s.Query(ctx, store.QueryInput{
			PartitionKey: "EVENT#1", SortKeyPrefix: "REGISTRATION#", Cursor: cursor, Limit: 2,
		})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		pages++
		for _, it := range page.Items {
			got = append(got, it.SortKey)
		}
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	if len(got) != 5 {
		t.Fatalf("got %d items, want 5: %v", len(got), got)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	for i, sk := range got {
		if want := fmt.Sprintf("REGISTRATION#%d", i); sk != want {
			t.Errorf("item %d = %q, want %q", i, sk, want)
		}
	}
}

func TestQuery_ExactPageHasNoNext(t *testing.T) {
	s := New()
	put(t, s, "EVENT#1", "REGISTRATION#a", `{}`)
	put(t, s, "EVENT#1", "REGISTRATION#b", `{}`)
	page, err := s.Query(context.Background(), store.QueryInput{
		PartitionKey: "EVENT#1", SortKeyPrefix: "REGISTRATION#", Limit: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Next != "" {
		t.Fatalf("got %d items next=%q, want 2 items and no next", len(page.Items), page.Next)
	}
}

func TestScan_SortKeyAcrossPartitions(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		put(t, s, "EVENT#"+id, "METADATA", `{}`)
		put(t, s, "EVENT#"+id, "REGISTRATION#r", `{}`)
	}

	page, err := s.Scan(ctx, store.ScanInput{SortKey: "METADATA", Limit: 2})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].PartitionKey != "EVENT#a" || page.Items[1].PartitionKey != "EVENT#b" {
		t.Fatalf("first page = %+v", page.Items)
	}
	if page.Next == "" {
		t.Fatal("expected a next cursor")
	}

	page, err = s.Scan(ctx, store.ScanInput{SortKey: "METADATA", Cursor: page.Next, Limit: 2})
	if err != nil {
		t.Fatalf("Scan page 2: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].PartitionKey != "EVENT#c" || page.Next != "" {
		t.Fatalf("second page = %+v next=%q", page.Items, page.Next)
	}
}

func TestScan_InvalidCursor(t *testing.T) {
	s := New()
	_, err := s.Scan(context.Background(), store.ScanInput{SortKey: "METADATA", Cursor: "%%%"})
	if !errors.Is(err, store.ErrInvalidCursor) {
		t.Fatalf("error = %v, want ErrInvalidCursor", err)
	}
}

func TestCanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetItem(ctx, store.Key{PartitionKey: "p", SortKey: "s"}); !errors.Is(err, context.Canceled) {
		t.Errorf("GetItem error = %v, want context.Canceled", err)
	}
	err := s.ConditionalUpdate(ctx, store.Key{PartitionKey: "p", SortKey: "s"}, store.CounterUpdate{Field: []string{"n"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ConditionalUpdate error = %v, want context.Canceled", err)
	}
}
