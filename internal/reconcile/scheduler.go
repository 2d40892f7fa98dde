package reconcile

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Destination is the interface for a report target (S3, local file).
type Destination interface {
	// Name identifies the destination in logs.
	Name() string
	// Write stores the JSONL report.
	Write(ctx context.Context, data []byte) error
}

// Scheduler runs periodic sweeps and ships each report to the destinations.
type Scheduler struct {
	sweeper      *Sweeper
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that sweeps at the given interval.
func NewScheduler(sw *Sweeper, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		sweeper:      sw,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic sweeps. The first one runs immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sweep (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and writes its report to every destination.
// Failures are logged; a failing destination does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) *Report {
	report, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("reconciliation sweep failed", "error", err)
		return nil
	}

	var buf bytes.Buffer
	if err := WriteJSONL(report, &buf); err != nil {
		s.logger.Error("encode reconciliation report", "error", err)
		return report
	}
	data := buf.Bytes()

	for _, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("report destination write failed", "destination", dest.Name(), "error", err)
		}
	}
	return report
}
