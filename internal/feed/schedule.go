package feed

import "time"

const (
	DefaultInitialDelay = 5 * time.Second
	DefaultPeriod       = 60 * time.Second
)

// FixedRate is a cron.Schedule that fires at First and then at First+k*Period.
// Next always returns the first slot strictly after t, so missed slots are
// skipped rather than replayed.
type FixedRate struct {
	First  time.Time
	Period time.Duration
}

func (s FixedRate) Next(t time.Time) time.Time {
	if t.Before(s.First) {
		return s.First
	}
	if s.Period <= 0 {
		// zero time tells cron the entry never runs again
		return time.Time{}
	}
	n := t.Sub(s.First)/s.Period + 1
	return s.First.Add(n * s.Period)
}
