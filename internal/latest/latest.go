// Package latest keeps the most recent snapshot delivered by the feed.
package latest

import (
	"sync"
	"time"

	"geprices/internal/prices"
)

// Row is one item of the latest snapshot, flattened for API responses.
type Row struct {
	ID              int       `json:"id"`
	High            int64     `json:"high,omitempty"`
	HighTime        time.Time `json:"high_time,omitzero"`
	Low             int64     `json:"low,omitempty"`
	LowTime         time.Time `json:"low_time,omitzero"`
	AvgHighPrice    int64     `json:"avg_high_price,omitempty"`
	HighPriceVolume int64     `json:"high_price_volume,omitempty"`
	AvgLowPrice     int64     `json:"avg_low_price,omitempty"`
	LowPriceVolume  int64     `json:"low_price_volume,omitempty"`
}

// Store holds only the newest delivery. Older snapshots are dropped as soon as
// a newer one arrives.
type Store struct {
	mu   sync.RWMutex
	snap *prices.Snapshot
	at   time.Time
}

// Update is a feed.Subscriber. A delivery older than the stored one is ignored.
func (s *Store) Update(snap *prices.Snapshot, at time.Time) {
	if snap == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil && at.Before(s.at) {
		return
	}
	s.snap = snap
	s.at = at
}

// Get returns the stored snapshot and its completion time; ok is false until
// the first delivery.
func (s *Store) Get() (snap *prices.Snapshot, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.at, s.snap != nil
}

// Rows returns the requested items in ascending id order. An empty ids slice
// selects every item. Unknown ids are skipped.
func (s *Store) Rows(ids []int) []Row {
	snap, _, ok := s.Get()
	if !ok {
		return nil
	}

	if len(ids) == 0 {
		out := make([]Row, 0, snap.Len())
		snap.Each(func(id int, p prices.Price) bool {
			out = append(out, toRow(id, p))
			return true
		})
		return out
	}

	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := make([]Row, 0, len(want))
	snap.Each(func(id int, p prices.Price) bool {
		if _, ok := want[id]; ok {
			out = append(out, toRow(id, p))
		}
		return len(out) < len(want)
	})
	return out
}

func toRow(id int, p prices.Price) Row {
	return Row{
		ID:              id,
		High:            p.High,
		HighTime:        p.HighTime,
		Low:             p.Low,
		LowTime:         p.LowTime,
		AvgHighPrice:    p.AvgHighPrice,
		HighPriceVolume: p.HighPriceVolume,
		AvgLowPrice:     p.AvgLowPrice,
		LowPriceVolume:  p.LowPriceVolume,
	}
}
