// Package ratelimit bounds how often the shared upstream endpoint is hit.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Gate is a non-blocking token bucket. Callers that are denied skip their work
// instead of waiting, so a denied request never queues behind another one.
// A nil *Gate allows everything.
type Gate struct {
	lim *rate.Limiter
}

// NewGate allows perMinute requests per minute with the given burst.
// perMinute <= 0 disables the gate and returns nil.
func NewGate(perMinute float64, burst int) *Gate {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gate{lim: rate.NewLimiter(rate.Limit(perMinute/60.0), burst)}
}

// NewEvery allows one request per interval with the given burst.
func NewEvery(interval time.Duration, burst int) *Gate {
	if interval <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Gate{lim: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether a request may be made now and consumes a token if so.
func (g *Gate) Allow() bool {
	if g == nil {
		return true
	}
	return g.lim.Allow()
}

// AllowAt is Allow evaluated at t.
func (g *Gate) AllowAt(t time.Time) bool {
	if g == nil {
		return true
	}
	return g.lim.AllowN(t, 1)
}
