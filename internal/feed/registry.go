package feed

import (
	"sync"
	"time"

	"geprices/internal/prices"
)

// Subscriber receives every successfully parsed snapshot together with the time
// it finished parsing. The snapshot is shared with other subscribers and must
// be treated as read-only.
type Subscriber func(snap *prices.Snapshot, at time.Time)

// Registry is an append-only, ordered list of subscribers.
type Registry struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// Subscribe appends fn. Nil subscribers are ignored.
func (r *Registry) Subscribe(fn Subscriber) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.subs = append(r.subs, fn)
	r.mu.Unlock()
}

// Len reports the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// list returns a copy so dispatch does not hold the lock while calling out.
func (r *Registry) list() []Subscriber {
	r.mu.RLock()
	out := make([]Subscriber, len(r.subs))
	copy(out, r.subs)
	r.mu.RUnlock()
	return out
}
