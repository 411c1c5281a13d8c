package feed

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"geprices/internal/prices"
	"geprices/internal/ratelimit"
)

// Source produces one snapshot per call. *prices.Client implements it.
//
//go:generate mockgen -package=feed_test -destination=mock_source_test.go -source=dispatcher.go Source
type Source interface {
	Latest(ctx context.Context) (*prices.Snapshot, error)
}

// Outcome is what happened to a single tick.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeSkippedInFlight
	OutcomeRateLimited
	OutcomeTransportError
	OutcomeStatusError
	OutcomeParseError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeSkippedInFlight:
		return "skipped_in_flight"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeStatusError:
		return "status_error"
	case OutcomeParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time copy of the dispatcher counters.
type Stats struct {
	Ticks            uint64    `json:"ticks"`
	Delivered        uint64    `json:"delivered"`
	SkippedInFlight  uint64    `json:"skipped_in_flight"`
	RateLimited      uint64    `json:"rate_limited"`
	TransportErrors  uint64    `json:"transport_errors"`
	StatusErrors     uint64    `json:"status_errors"`
	ParseErrors      uint64    `json:"parse_errors"`
	SubscriberPanics uint64    `json:"subscriber_panics"`
	Subscribers      int       `json:"subscribers"`
	LastSuccess      time.Time `json:"last_success,omitzero"`
}

type counters struct {
	ticks            atomic.Uint64
	byOutcome        [OutcomeParseError + 1]atomic.Uint64
	subscriberPanics atomic.Uint64
	lastSuccess      atomic.Int64 // unix nanos
}

// Dispatcher runs one poll per call and fans the result out to a Registry.
type Dispatcher struct {
	source   Source
	registry *Registry
	gate     *ratelimit.Gate
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger

	inFlight atomic.Bool
	stats    counters
}

// NewDispatcher wires source to registry. gate may be nil; timeout <= 0 means
// the poll is bounded only by ctx.
func NewDispatcher(source Source, registry *Registry, gate *ratelimit.Gate, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		source:   source,
		registry: registry,
		gate:     gate,
		timeout:  timeout,
		now:      time.Now,
		log:      log,
	}
}

// Dispatch performs one tick. It never returns an error: every failure is
// classified, logged and counted, and the tick is dropped.
func (d *Dispatcher) Dispatch(ctx context.Context) Outcome {
	d.stats.ticks.Add(1)

	if !d.inFlight.CompareAndSwap(false, true) {
		d.log.Debug().Msg("previous poll still running, skipping tick")
		return d.record(OutcomeSkippedInFlight)
	}
	defer d.inFlight.Store(false)

	if !d.gate.Allow() {
		d.log.Debug().Msg("request budget exhausted, skipping tick")
		return d.record(OutcomeRateLimited)
	}

	log := d.log.With().Str("tick", uuid.NewString()).Logger()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := d.source.Latest(ctx)
	if err == nil && snap == nil {
		err = fmt.Errorf("%w: empty snapshot", prices.ErrMalformed)
	}
	if err != nil {
		outcome := classify(err)
		log.Warn().Err(err).Str("outcome", outcome.String()).Dur("took", time.Since(start)).Msg("poll dropped")
		return d.record(outcome)
	}
	at := d.now()

	d.notify(log, snap, at)
	d.stats.lastSuccess.Store(at.UnixNano())
	log.Debug().Int("items", snap.Len()).Dur("took", time.Since(start)).Msg("snapshot delivered")
	return d.record(OutcomeDelivered)
}

func (d *Dispatcher) notify(log zerolog.Logger, snap *prices.Snapshot, at time.Time) {
	for i, sub := range d.registry.list() {
		d.deliver(log, i, sub, snap, at)
	}
}

func (d *Dispatcher) deliver(log zerolog.Logger, idx int, sub Subscriber, snap *prices.Snapshot, at time.Time) {
	defer func() {
		if r := recover(); r != nil {
			d.stats.subscriberPanics.Add(1)
			log.Error().
				Int("subscriber", idx).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("subscriber panicked")
		}
	}()
	sub(snap, at)
}

func (d *Dispatcher) record(o Outcome) Outcome {
	d.stats.byOutcome[o].Add(1)
	return o
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() Stats {
	s := Stats{
		Ticks:            d.stats.ticks.Load(),
		Delivered:        d.stats.byOutcome[OutcomeDelivered].Load(),
		SkippedInFlight:  d.stats.byOutcome[OutcomeSkippedInFlight].Load(),
		RateLimited:      d.stats.byOutcome[OutcomeRateLimited].Load(),
		TransportErrors:  d.stats.byOutcome[OutcomeTransportError].Load(),
		StatusErrors:     d.stats.byOutcome[OutcomeStatusError].Load(),
		ParseErrors:      d.stats.byOutcome[OutcomeParseError].Load(),
		SubscriberPanics: d.stats.subscriberPanics.Load(),
		Subscribers:      d.registry.Len(),
	}
	if ns := d.stats.lastSuccess.Load(); ns != 0 {
		s.LastSuccess = time.Unix(0, ns).UTC()
	}
	return s
}

func classify(err error) Outcome {
	var statusErr *prices.StatusError
	switch {
	case errors.As(err, &statusErr):
		return OutcomeStatusError
	case errors.Is(err, prices.ErrMalformed):
		return OutcomeParseError
	default:
		return OutcomeTransportError
	}
}
