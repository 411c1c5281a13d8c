// Package feed polls the prices endpoint on a fixed-rate schedule and fans each
// parsed snapshot out to in-process subscribers.
//
// # Scheduling
//
// The first poll happens InitialDelay after Start and then every Period, measured
// from one trigger to the next. Triggers are anchored to the first one, so a slow
// poll does not push the schedule back, and a process that wakes up late fires
// once for the missed interval instead of once per missed trigger.
//
// # Failures
//
// Transport errors, non-2xx responses and malformed bodies drop the tick. They
// are logged and counted in Stats, never retried and never shown to subscribers.
//
// # Concurrency
//
// At most one request is outstanding at a time; a trigger that fires while a
// poll is still running is skipped. Subscribers are called sequentially in
// registration order and each call is isolated, so a panicking subscriber does
// not stop delivery to the ones after it.
package feed
