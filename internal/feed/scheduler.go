package feed

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("feed: already started")
	// ErrStopped is returned by Start once Stop has been called.
	ErrStopped = errors.New("feed: stopped")
)

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

// Scheduler owns the single periodic task that triggers polls.
type Scheduler struct {
	mu    sync.Mutex
	state runState
	c     *cron.Cron

	delay  time.Duration
	period time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewScheduler(delay, period time.Duration, log zerolog.Logger) *Scheduler {
	if delay < 0 {
		delay = 0
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Scheduler{delay: delay, period: period, now: time.Now, log: log}
}

// Start schedules job on a FixedRate anchored at now+delay. Each run happens on
// its own goroutine, so the cron loop never waits on a poll.
func (s *Scheduler) Start(job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateStopped:
		return ErrStopped
	}

	logger := cronLogger{log: s.log}
	s.c = cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	first := s.now().Add(s.delay)
	s.c.Schedule(FixedRate{First: first, Period: s.period}, cron.FuncJob(job))
	s.c.Start()
	s.state = stateRunning

	s.log.Info().
		Time("first", first).
		Dur("period", s.period).
		Msg("scheduler started")
	return nil
}

// Stop cancels future triggers. It is safe to call at any time and any number
// of times, and it does not wait for a poll that is already running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = stateStopped
	if prev != stateRunning {
		return
	}
	// the returned context waits for running jobs; polls are fire-and-forget
	_ = s.c.Stop()
	s.c = nil
	s.log.Info().Msg("scheduler stopped")
}

// Running reports whether the periodic task is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
