// Package reconcile detects events whose registered counter disagrees with
// the registration records stored next to it. Registration reserves capacity
// and writes the record in two separate single-item writes, so a failure
// between them leaves seats spent with no record. The sweep reports such
// gaps; it never repairs them.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/events"
	"github.com/alfredjeanlab/evreg/internal/model"
)

// DefaultConcurrency is the number of event partitions read in parallel.
const DefaultConcurrency = 8

// Mismatch is one event whose counter and records disagree.
type Mismatch struct {
	EventID    string `json:"eventId"`
	Max        int    `json:"max"`
	Registered int    `json:"registered"`
	Recorded   int    `json:"recorded"` // sum of group sizes over registration records
	Records    int    `json:"records"`
}

// Orphaned is the number of seats counted but not backed by a record.
// Negative values mean records exceed the counter, which registration
// itself never produces.
func (m Mismatch) Orphaned() int {
	return m.Registered - m.Recorded
}

// Report is the outcome of one sweep.
type Report struct {
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	Events     int        `json:"events"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Sweeper walks every event and compares its counter with its records.
type Sweeper struct {
	catalog     *catalog.Catalog
	publisher   events.Publisher
	logger      *slog.Logger
	concurrency int
	now         func() time.Time
}

// NewSweeper creates a sweeper. A nil publisher disables publishing.
func NewSweeper(c *catalog.Catalog, p events.Publisher, logger *slog.Logger) *Sweeper {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		catalog:     c,
		publisher:   p,
		logger:      logger,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
}

// SetConcurrency bounds how many event partitions are read at once.
func (s *Sweeper) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// Sweep checks every event once. Each mismatch is logged and published on
// events.TopicCapacityMismatch. Mismatches are sorted by event id.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: s.now().UTC(), Mismatches: []Mismatch{}}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	token := ""
	for {
		page, err := s.catalog.ListEvents(gctx, model.EventFilter{}, catalog.MaxLimit, token)
		if err != nil {
			_ = g.Wait()
			return nil, fmt.Errorf("list events: %w", err)
		}
		for _, e := range page.Events {
			report.Events++
			g.Go(func() error {
				m, ok, err := s.check(gctx, e)
				if err != nil || !ok {
					return err
				}
				mu.Lock()
				report.Mismatches = append(report.Mismatches, m)
				mu.Unlock()
				return nil
			})
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Mismatches, func(i, j int) bool {
		return report.Mismatches[i].EventID < report.Mismatches[j].EventID
	})
	report.FinishedAt = s.now().UTC()

	for _, m := range report.Mismatches {
		s.logger.Warn("capacity mismatch",
			"event_id", m.EventID,
			"registered", m.Registered,
			"recorded", m.Recorded,
			"orphaned", m.Orphaned(),
		)
		if err := s.publisher.Publish(ctx, events.TopicCapacityMismatch, events.CapacityMismatch{
			EventID:    m.EventID,
			Registered: m.Registered,
			Recorded:   m.Recorded,
			Records:    m.Records,
			DetectedAt: report.FinishedAt,
		}); err != nil {
			s.logger.Warn("failed to publish event", "topic", events.TopicCapacityMismatch, "event_id", m.EventID, "error", err)
		}
	}
	s.logger.Info("reconciliation sweep completed",
		"events", report.Events,
		"mismatches", len(report.Mismatches),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// check compares one event's counter with its records. The two reads are not
// a snapshot: a registration in flight shows up as a transient gap, so only
// a positive gap that persists across sweeps is a real orphan.
func (s *Sweeper) check(ctx context.Context, e *model.Event) (Mismatch, bool, error) {
	regs, err := s.catalog.ListRegistrations(ctx, e.ID)
	if err != nil {
		return Mismatch{}, false, fmt.Errorf("registrations of %s: %w", e.ID, err)
	}
	m := Mismatch{
		EventID:    e.ID,
		Max:        e.Capacity.Max,
		Registered: e.Capacity.Registered,
		Records:    len(regs),
	}
	for _, r := range regs {
		m.Recorded += r.GroupSize
	}
	return m, m.Recorded != m.Registered, nil
}
