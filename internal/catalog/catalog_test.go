package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/store"
	"github.com/alfredjeanlab/evreg/internal/store/memory"
)

// seedEvents writes n events e00..e(n-1). Even-numbered events belong to the
// "music" category and odd ones to "tech"; every third event is full.
func seedEvents(t *testing.T, c *Catalog, n int) {
	t.Helper()
	for i := range n {
		cat := "music"
		if i%2 == 1 {
			cat = "tech"
		}
		registered := 0
		if i%3 == 0 {
			registered = 10
		}
		e := &model.Event{
			ID:          fmt.Sprintf("e%02d", i),
			Title:       fmt.Sprintf("Event %d", i),
			Description: fmt.Sprintf("A %s gathering", cat),
			Date:        time.Date(2026, 11, 1+i%28, 19, 0, 0, 0, time.UTC),
			Category:    model.Category{ID: cat, Name: cat},
			Capacity:    model.Capacity{Max: 10, Registered: registered},
		}
		if err := c.PutEvent(context.Background(), e); err != nil {
			t.Fatalf("PutEvent(%s): %v", e.ID, err)
		}
	}
}

func newTestCatalog(t *testing.T, opts Options) (*Catalog, *memory.Store) {
	t.Helper()
	s := memory.New()
	t.Cleanup(func() { s.Close() })
	return New(s, opts), s
}

func eventIDs(events []*model.Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func TestGetEvent(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	seedEvents(t, c, 2)

	e, err := c.GetEvent(context.Background(), "e01")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if e.ID != "e01" || e.Category.ID != "tech" {
		t.Errorf("got %+v", e)
	}

	_, err = c.GetEvent(context.Background(), "missing")
	if !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("err = %v, want ErrEventNotFound", err)
	}
}

func TestCreateEvent_KeepsExisting(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	ctx := context.Background()
	e := &model.Event{ID: "e1", Title: "Original", Capacity: model.Capacity{Max: 5, Registered: 3}}
	if err := c.CreateEvent(ctx, e); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	reseed := &model.Event{ID: "e1", Title: "Reseeded", Capacity: model.Capacity{Max: 5}}
	if err := c.CreateEvent(ctx, reseed); !errors.Is(err, ErrEventExists) {
		t.Fatalf("second CreateEvent = %v, want ErrEventExists", err)
	}
	got, err := c.GetEvent(ctx, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Original" || got.Capacity.Registered != 3 {
		t.Errorf("event overwritten: %+v", got)
	}

	if err := c.CreateEvent(ctx, &model.Event{}); err == nil {
		t.Error("CreateEvent accepted an empty id")
	}
}

func TestListEvents_Validation(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		filter model.EventFilter
		limit  int
		token  string
		want   error
	}{
		{"limit too large", model.EventFilter{}, 101, "", ErrInvalidLimit},
		{"negative limit", model.EventFilter{}, -1, "", ErrInvalidLimit},
		{"unknown status", model.EventFilter{Status: "sold_out"}, 10, "", ErrInvalidFilter},
		{"garbage token", model.EventFilter{}, 10, "not-a-token!", ErrInvalidToken},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.ListEvents(ctx, tc.filter, tc.limit, tc.token)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestListEvents_DefaultLimit(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	seedEvents(t, c, 30)

	page, err := c.ListEvents(context.Background(), model.EventFilter{}, 0, "")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if page.Total != DefaultLimit || len(page.Events) != DefaultLimit {
		t.Fatalf("total = %d, events = %d, want %d", page.Total, len(page.Events), DefaultLimit)
	}
	if page.NextToken == "" {
		t.Fatal("expected a next token")
	}
}

func TestListEvents_Filters(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	seedEvents(t, c, 12)
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		filter model.EventFilter
		want   int
	}{
		{"category", model.EventFilter{Category: "tech"}, 6},
		{"status full", model.EventFilter{Status: model.StatusFull}, 4},
		{"status available", model.EventFilter{Status: model.StatusAvailable}, 8},
		{"search is case-insensitive", model.EventFilter{Search: "MUSIC"}, 6},
		{"search title", model.EventFilter{Search: "event 11"}, 1},
		{"combined", model.EventFilter{Category: "music", Status: model.StatusFull}, 2},
		{"no match", model.EventFilter{Category: "sports"}, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			page, err := c.ListEvents(ctx, tc.filter, 100, "")
			if err != nil {
				t.Fatalf("ListEvents: %v", err)
			}
			if page.Total != tc.want {
				t.Errorf("total = %d (%v), want %d", page.Total, eventIDs(page.Events), tc.want)
			}
			for _, e := range page.Events {
				if !tc.filter.Matches(e) {
					t.Errorf("event %s does not match filter", e.ID)
				}
			}
			if page.NextToken != "" {
				t.Errorf("unexpected next token on exhausted scan")
			}
		})
	}
}

func TestListEvents_PaginationRoundTrip(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	seedEvents(t, c, 40)
	ctx := context.Background()

	filter := model.EventFilter{Status: model.StatusAvailable}
	want := 0
	for i := range 40 {
		if i%3 != 0 {
			want++
		}
	}

	seen := map[string]int{}
	token := ""
	pages := 0
	for {
		page, err := c.ListEvents(ctx, filter, 7, token)
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		pages++
		if page.Total != len(page.Events) {
			t.Errorf("page %d: total %d != len %d", pages, page.Total, len(page.Events))
		}
		if len(page.Events) > 7 {
			t.Fatalf("page %d: %d events exceeds limit", pages, len(page.Events))
		}
		for _, e := range page.Events {
			seen[e.ID]++
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
		if pages > 50 {
			t.Fatal("pagination did not terminate")
		}
	}

	if len(seen) != want {
		t.Errorf("saw %d distinct events, want %d", len(seen), want)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("event %s returned %d times", id, n)
		}
	}
}

func TestListEvents_OverflowTokenResumesAfterLastReturned(t *testing.T) {
	c, _ := newTestCatalog(t, Options{})
	seedEvents(t, c, 10)
	ctx := context.Background()

	// limit 2 with overfetch 3 scans 6 events in one round: the buffer overflows.
	first, err := c.ListEvents(ctx, model.EventFilter{}, 2, "")
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if got := eventIDs(first.Events); len(got) != 2 || got[0] != "e00" || got[1] != "e01" {
		t.Fatalf("first page = %v", got)
	}
	second, err := c.ListEvents(ctx, model.EventFilter{}, 2, first.NextToken)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if got := eventIDs(second.Events); len(got) != 2 || got[0] != "e02" || got[1] != "e03" {
		t.Fatalf("second page = %v", got)
	}
}

func TestListEvents_RoundBudget(t *testing.T) {
	// One event per round and two rounds: a sparse filter yields an empty
	// page that still carries a token.
	c, _ := newTestCatalog(t, Options{OverfetchFactor: 1, MaxScanRounds: 2})
	seedEvents(t, c, 8)
	ctx := context.Background()

	filter := model.EventFilter{Search: "event 7"}
	page, err := c.ListEvents(ctx, filter, 1, "")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if page.Total != 0 || page.NextToken == "" {
		t.Fatalf("first page = %v next %q, want empty with token", eventIDs(page.Events), page.NextToken)
	}

	var found []string
	for token := page.NextToken; token != ""; {
		page, err = c.ListEvents(ctx, filter, 1, token)
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		found = append(found, eventIDs(page.Events)...)
		token = page.NextToken
	}
	if len(found) != 1 || found[0] != "e07" {
		t.Fatalf("found %v, want [e07]", found)
	}
}

func TestListEvents_SkipsRegistrationRecords(t *testing.T) {
	c, s := newTestCatalog(t, Options{})
	seedEvents(t, c, 2)

	item, err := EncodeRegistration(&model.Registration{ID: "reg_1", EventID: "e00", AttendeeEmail: "a@x.io", AttendeeName: "A", GroupSize: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.PutItem(context.Background(), item, store.PutOptions{FailIfExists: true}); err != nil {
		t.Fatal(err)
	}

	page, err := c.ListEvents(context.Background(), model.EventFilter{}, 10, "")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("total = %d, want 2", page.Total)
	}
}

func TestListRegistrations(t *testing.T) {
	c, s := newTestCatalog(t, Options{})
	seedEvents(t, c, 2)
	ctx := context.Background()

	// More than one page of registrations.
	for i := range registrationPageSize + 5 {
		item, err := EncodeRegistration(&model.Registration{
			ID:            fmt.Sprintf("reg_%04d", i),
			EventID:       "e01",
			AttendeeEmail: fmt.Sprintf("a%d@x.io", i),
			AttendeeName:  "A",
			GroupSize:     1,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.PutItem(ctx, item, store.PutOptions{FailIfExists: true}); err != nil {
			t.Fatal(err)
		}
	}

	regs, err := c.ListRegistrations(ctx, "e01")
	if err != nil {
		t.Fatalf("ListRegistrations: %v", err)
	}
	if len(regs) != registrationPageSize+5 {
		t.Fatalf("got %d registrations", len(regs))
	}
	if regs[0].ID != "reg_0000" || regs[0].EventID != "e01" {
		t.Errorf("first = %+v", regs[0])
	}

	empty, err := c.ListRegistrations(ctx, "e00")
	if err != nil {
		t.Fatalf("ListRegistrations: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d registrations for e00", len(empty))
	}

	// Early stop.
	n := 0
	if err := c.EachRegistration(ctx, "e01", func(*model.Registration) bool { n++; return n < 3 }); err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("visited %d, want 3", n)
	}
}

func TestRecordKeys(t *testing.T) {
	k := RegistrationKey("e1", "reg_abc")
	if k.PartitionKey != "EVENT#e1" || k.SortKey != "REGISTRATION#reg_abc" {
		t.Errorf("RegistrationKey = %+v", k)
	}
	if id, ok := EventIDFromKey(EventKey("e1")); !ok || id != "e1" {
		t.Errorf("EventIDFromKey = %q, %v", id, ok)
	}
	if _, ok := EventIDFromKey(store.Key{PartitionKey: "OTHER#x"}); ok {
		t.Error("EventIDFromKey accepted a foreign partition")
	}
}
