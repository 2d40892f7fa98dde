// Package registration implements capacity-safe event registration on top of
// a store whose only concurrency primitive is a single-item conditional
// update.
//
// A registration reserves seats by compare-and-swap on the event's
// registered counter, then writes the registration record. The two writes
// are not atomic: if the record write fails the seats stay reserved, the
// failure is logged and published as an orphan, and the caller gets
// INTERNAL_ERROR. The reconciliation sweep reports such gaps later.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alfredjeanlab/evreg/internal/catalog"
	"github.com/alfredjeanlab/evreg/internal/events"
	"github.com/alfredjeanlab/evreg/internal/idgen"
	"github.com/alfredjeanlab/evreg/internal/model"
	"github.com/alfredjeanlab/evreg/internal/store"
)

const (
	defaultRetryBackoff    = 10 * time.Millisecond
	defaultMaxRetryBackoff = 200 * time.Millisecond
)

// Request is a registration attempt as received from a transport.
type Request struct {
	EventID       string `json:"eventId"`
	AttendeeEmail string `json:"attendeeEmail"`
	AttendeeName  string `json:"attendeeName"`
	GroupSize     int    `json:"groupSize"`
}

// Result describes a committed registration. Event reflects the counter
// value this registration wrote.
type Result struct {
	RegistrationID string         `json:"registrationId"`
	Event          *model.Event   `json:"event"`
	Attendee       model.Attendee `json:"attendee"`
}

// Options configures an Engine. The zero value gives the baseline policy:
// case-sensitive email comparison and a single CAS attempt.
type Options struct {
	// CaseInsensitiveEmail makes the duplicate check fold case.
	CaseInsensitiveEmail bool

	// MaxCASAttempts bounds the read-check-CAS loop. Values below 2 mean a
	// lost race is reported as INSUFFICIENT_CAPACITY immediately.
	MaxCASAttempts int

	// RetryBackoff is the delay before the second attempt; it doubles up to
	// MaxRetryBackoff.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration

	Publisher events.Publisher
	Logger    *slog.Logger

	// NewID and Now default to idgen.Registration and time.Now.
	NewID func() (string, error)
	Now   func() time.Time
}

// Engine decides and records registrations. It holds no mutable state, so a
// single Engine serves any number of concurrent requests.
type Engine struct {
	store   store.Store
	catalog *catalog.Catalog
	opts    Options
}

// New creates an Engine over s.
func New(s store.Store, opts Options) *Engine {
	if opts.MaxCASAttempts < 1 {
		opts.MaxCASAttempts = 1
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	if opts.MaxRetryBackoff < opts.RetryBackoff {
		opts.MaxRetryBackoff = max(defaultMaxRetryBackoff, opts.RetryBackoff)
	}
	if opts.Publisher == nil {
		opts.Publisher = &events.NoopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = idgen.Registration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:   s,
		catalog: catalog.New(s, catalog.Options{Logger: opts.Logger}),
		opts:    opts,
	}
}

// attempt carries one request through the state machine.
type attempt struct {
	*Engine
	req    Request
	state  State
	logger *slog.Logger
}

// Register runs the registration state machine for req. Refusals are
// returned as *Rejection.
func (e *Engine) Register(ctx context.Context, req Request) (*Result, error) {
	a := &attempt{
		Engine: e,
		req:    req,
		state:  StateValidating,
		logger: e.opts.Logger.With("event_id", req.EventID),
	}
	res, rej := a.run(ctx)
	if rej != nil {
		a.finishRejected(rej)
		return nil, rej
	}
	a.state = StateCommitted
	a.logger.Info("registration committed",
		"state", a.state,
		"registration_id", res.RegistrationID,
		"group_size", req.GroupSize,
		"registered", res.Event.Capacity.Registered,
		"max", res.Event.Capacity.Max,
	)
	return res, nil
}

func (a *attempt) run(ctx context.Context) (*Result, *Rejection) {
	attendee := model.Attendee{
		Email:     a.req.AttendeeEmail,
		Name:      strings.TrimSpace(a.req.AttendeeName),
		GroupSize: a.req.GroupSize,
	}
	if rej := a.validate(attendee); rej != nil {
		return nil, rej
	}

	event, err := a.catalog.GetEvent(ctx, a.req.EventID)
	if errors.Is(err, catalog.ErrEventNotFound) {
		return nil, reject(model.CodeEventNotFound, "event %s does not exist", a.req.EventID)
	}
	if err != nil {
		return nil, a.infraFailure(err, "event lookup failed")
	}

	a.state = StateDuplicateChecking
	dup, err := a.isDuplicate(ctx, attendee.Email)
	if err != nil {
		return nil, a.infraFailure(err, "duplicate check failed")
	}
	if dup {
		return nil, reject(model.CodeDuplicateRegistration,
			"%s is already registered for event %s", attendee.Email, a.req.EventID)
	}

	a.state = StateCapacityReserving
	event, rej := a.reserve(ctx, event, attendee.GroupSize)
	if rej != nil {
		return nil, rej
	}

	a.state = StateRegistrationRecording
	reg, rej := a.record(ctx, attendee)
	if rej != nil {
		return nil, rej
	}

	if err := a.opts.Publisher.Publish(context.WithoutCancel(ctx), events.TopicRegistrationCreated, events.RegistrationCreated{
		Registration: reg,
		Capacity:     event.Capacity,
	}); err != nil {
		a.logger.Warn("failed to publish event", "topic", events.TopicRegistrationCreated, "error", err)
	}

	return &Result{RegistrationID: reg.ID, Event: event, Attendee: attendee}, nil
}

func (a *attempt) validate(attendee model.Attendee) *Rejection {
	if strings.TrimSpace(a.req.EventID) == "" {
		return reject(model.CodeInvalidRequest, "eventId is required")
	}
	err := model.ValidateAttendee(attendee)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrInvalidEmail) {
		return &Rejection{Code: model.CodeInvalidEmail, Message: err.Error()}
	}
	return &Rejection{Code: model.CodeInvalidRequest, Message: err.Error()}
}

// isDuplicate scans the event partition for a registration with the same
// email. It is a read: two concurrent requests can both pass it.
func (a *attempt) isDuplicate(ctx context.Context, email string) (bool, error) {
	same := func(other string) bool { return other == email }
	if a.opts.CaseInsensitiveEmail {
		same = func(other string) bool { return strings.EqualFold(other, email) }
	}
	found := false
	err := a.catalog.EachRegistration(ctx, a.req.EventID, func(r *model.Registration) bool {
		found = same(r.AttendeeEmail)
		return !found
	})
	return found, err
}

// capacityCheck returns the rejection for a group that cannot be seated.
func capacityCheck(c model.Capacity, groupSize int) *Rejection {
	if c.IsFull() {
		return reject(model.CodeEventFull, "event is full (%d/%d)", c.Registered, c.Max)
	}
	if !c.Fits(groupSize) {
		return reject(model.CodeInsufficientCapacity,
			"group of %d exceeds remaining capacity %d", groupSize, c.Remaining())
	}
	return nil
}

// reserve advances the registered counter by groupSize with a
// compare-and-swap guarded on the value last read. With the default single
// attempt a lost race is final; with more attempts the event is re-read and
// the capacity rules re-applied before each retry.
func (a *attempt) reserve(ctx context.Context, event *model.Event, groupSize int) (*model.Event, *Rejection) {
	delay := a.opts.RetryBackoff
	for try := 1; ; try++ {
		if rej := capacityCheck(event.Capacity, groupSize); rej != nil {
			return nil, rej
		}

		prior := event.Capacity.Registered
		err := a.store.ConditionalUpdate(ctx, catalog.EventKey(event.ID), store.CounterUpdate{
			Field:    catalog.RegisteredField,
			Expected: int64(prior),
			Next:     int64(prior + groupSize),
		})
		if err == nil {
			event.Capacity.Registered = prior + groupSize
			return event, nil
		}
		if !errors.Is(err, store.ErrPreconditionFailed) {
			return nil, a.writeFailure(err, "capacity update failed")
		}

		if try >= a.opts.MaxCASAttempts {
			return nil, reject(model.CodeInsufficientCapacity,
				"capacity changed concurrently; %d seats could not be reserved", groupSize)
		}
		a.logger.Debug("capacity update lost race, retrying", "attempt", try, "expected", prior)

		select {
		case <-ctx.Done():
			return nil, a.infraFailure(ctx.Err(), "capacity update interrupted")
		case <-time.After(delay):
		}
		delay = min(delay*2, a.opts.MaxRetryBackoff)

		event, err = a.catalog.GetEvent(ctx, event.ID)
		if err != nil {
			return nil, a.infraFailure(err, "event re-read failed")
		}
	}
}

// record writes the registration item. On failure the seats reserved by
// reserve stay spent.
func (a *attempt) record(ctx context.Context, attendee model.Attendee) (*model.Registration, *Rejection) {
	id, err := a.opts.NewID()
	if err != nil {
		a.orphaned(ctx, "", attendee.GroupSize, err)
		return nil, a.infraFailure(err, "registration id generation failed")
	}
	reg := &model.Registration{
		ID:            id,
		EventID:       a.req.EventID,
		AttendeeEmail: attendee.Email,
		AttendeeName:  attendee.Name,
		GroupSize:     attendee.GroupSize,
		RegisteredAt:  a.opts.Now().UTC(),
	}
	item, err := catalog.EncodeRegistration(reg)
	if err == nil {
		err = a.store.PutItem(ctx, item, store.PutOptions{FailIfExists: true})
	}
	if err != nil {
		a.orphaned(ctx, id, attendee.GroupSize, err)
		return nil, a.writeFailure(err, "registration could not be recorded")
	}
	return reg, nil
}

func (a *attempt) orphaned(ctx context.Context, registrationID string, groupSize int, cause error) {
	a.logger.Error("capacity spent without registration",
		"registration_id", registrationID,
		"group_size", groupSize,
		"error", cause,
	)
	if err := a.opts.Publisher.Publish(context.WithoutCancel(ctx), events.TopicRegistrationOrphaned, events.RegistrationOrphaned{
		EventID:        a.req.EventID,
		RegistrationID: registrationID,
		GroupSize:      groupSize,
		Error:          cause.Error(),
	}); err != nil {
		a.logger.Warn("failed to publish event", "topic", events.TopicRegistrationOrphaned, "error", err)
	}
}

// infraFailure wraps a store or context error from a read, or from any
// point where no write of this attempt can have been applied.
func (a *attempt) infraFailure(err error, message string) *Rejection {
	return internal(fmt.Errorf("%s: %w", message, err), false, message)
}

// writeFailure wraps an error from a conditional update or put. A deadline
// or cancellation leaves the outcome of the interrupted write unknown.
func (a *attempt) writeFailure(err error, message string) *Rejection {
	ambiguous := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	return internal(fmt.Errorf("%s: %w", message, err), ambiguous, message)
}

func (a *attempt) finishRejected(rej *Rejection) {
	from := a.state
	a.state = StateRejected
	attrs := []any{"state", a.state, "from", from, "code", rej.Code}
	if rej.Code == model.CodeInternalError {
		attrs = append(attrs, "ambiguous", rej.Ambiguous, "error", rej.cause)
		a.logger.Error("registration failed", attrs...)
		return
	}
	a.logger.Info("registration rejected", append(attrs, "reason", rej.Message)...)
}
