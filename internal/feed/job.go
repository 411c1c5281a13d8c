package feed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"geprices/internal/ratelimit"
)

// Job ties a Scheduler, a Dispatcher and a Registry together.
type Job struct {
	registry   *Registry
	dispatcher *Dispatcher
	scheduler  *Scheduler
	log        zerolog.Logger

	mu         sync.Mutex
	stopOnDone func() bool
}

type jobConfig struct {
	initialDelay time.Duration
	period       time.Duration
	timeout      time.Duration
	gate         *ratelimit.Gate
	log          zerolog.Logger
	now          func() time.Time
}

// JobOption is a configuration option for a Job.
type JobOption func(*jobConfig)

// WithInitialDelay sets the delay before the first poll.
func WithInitialDelay(d time.Duration) JobOption {
	return func(c *jobConfig) { c.initialDelay = d }
}

// WithPeriod sets the interval between polls.
func WithPeriod(d time.Duration) JobOption {
	return func(c *jobConfig) { c.period = d }
}

// WithRequestTimeout bounds each poll.
func WithRequestTimeout(d time.Duration) JobOption {
	return func(c *jobConfig) { c.timeout = d }
}

// WithGate installs a request budget shared by scheduled and manual polls.
func WithGate(g *ratelimit.Gate) JobOption {
	return func(c *jobConfig) { c.gate = g }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) JobOption {
	return func(c *jobConfig) { c.log = log }
}

// WithClock overrides the source of completion timestamps and the schedule anchor.
func WithClock(now func() time.Time) JobOption {
	return func(c *jobConfig) { c.now = now }
}

// NewJob builds a job polling source. It does nothing until Start.
func NewJob(source Source, opts ...JobOption) *Job {
	cfg := jobConfig{
		initialDelay: DefaultInitialDelay,
		period:       DefaultPeriod,
		log:          zerolog.Nop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.log.With().Str("component", "feed").Logger()
	registry := &Registry{}
	dispatcher := NewDispatcher(source, registry, cfg.gate, cfg.timeout, log)
	dispatcher.now = cfg.now
	scheduler := NewScheduler(cfg.initialDelay, cfg.period, log)
	scheduler.now = cfg.now

	return &Job{
		registry:   registry,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		log:        log,
	}
}

// Subscribe registers fn for every future delivery. It may be called before or
// after Start; a poll that is already fanning out may or may not include fn.
func (j *Job) Subscribe(fn Subscriber) {
	j.registry.Subscribe(fn)
}

// Start begins polling. Polls run with ctx, so cancelling ctx aborts an
// in-flight request and also stops the job.
func (j *Job) Start(ctx context.Context) error {
	if err := j.scheduler.Start(func() { j.dispatcher.Dispatch(ctx) }); err != nil {
		return err
	}
	j.mu.Lock()
	j.stopOnDone = context.AfterFunc(ctx, j.Stop)
	j.mu.Unlock()
	return nil
}

// Stop cancels future polls. It is idempotent and may be called before Start.
// A poll already in flight is not cancelled and may still deliver.
func (j *Job) Stop() {
	j.scheduler.Stop()
	j.mu.Lock()
	if j.stopOnDone != nil {
		j.stopOnDone()
		j.stopOnDone = nil
	}
	j.mu.Unlock()
}

// RunOnce polls immediately on the calling goroutine, subject to the same
// single-flight guard and request budget as scheduled polls.
func (j *Job) RunOnce(ctx context.Context) Outcome {
	return j.dispatcher.Dispatch(ctx)
}

// Running reports whether the periodic task is active.
func (j *Job) Running() bool { return j.scheduler.Running() }

// Stats returns the dispatcher counters.
func (j *Job) Stats() Stats { return j.dispatcher.Stats() }
