package prices

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Price is the trade data for a single item. Zero values mean the upstream had
// no data for that field (null or omitted).
type Price struct {
	High     int64
	HighTime time.Time
	Low      int64
	LowTime  time.Time

	// Averaged endpoints only.
	AvgHighPrice    int64
	HighPriceVolume int64
	AvgLowPrice     int64
	LowPriceVolume  int64
}

// Snapshot is an immutable view of one parsed response. It is shared by all
// subscribers of a cycle, so it only exposes read accessors.
type Snapshot struct {
	items     map[int]Price
	ids       []int
	timestamp time.Time
}

// NewSnapshot builds a Snapshot from items. The map is copied.
func NewSnapshot(items map[int]Price, timestamp time.Time) *Snapshot {
	s := &Snapshot{
		items:     make(map[int]Price, len(items)),
		ids:       make([]int, 0, len(items)),
		timestamp: timestamp,
	}
	for id, p := range items {
		s.items[id] = p
		s.ids = append(s.ids, id)
	}
	sort.Ints(s.ids)
	return s
}

// Item returns the price for id.
func (s *Snapshot) Item(id int) (Price, bool) {
	p, ok := s.items[id]
	return p, ok
}

// Len is the number of items in the snapshot.
func (s *Snapshot) Len() int { return len(s.ids) }

// IDs returns the item ids in ascending order.
func (s *Snapshot) IDs() []int { return append([]int(nil), s.ids...) }

// Timestamp is the window start reported by averaged endpoints; zero for /latest.
func (s *Snapshot) Timestamp() time.Time { return s.timestamp }

// Each calls fn for every item in ascending id order until fn returns false.
func (s *Snapshot) Each(fn func(id int, p Price) bool) {
	for _, id := range s.ids {
		if !fn(id, s.items[id]) {
			return
		}
	}
}

// rawPrice mirrors one entry of the upstream "data" object.
//
//	{
//	  "high": 1520000, "highTime": 1729000000,
//	  "low": 1500000, "lowTime": 1729000050
//	}
type rawPrice struct {
	High            *int64 `json:"high,omitempty"`
	HighTime        *int64 `json:"highTime,omitempty"`
	Low             *int64 `json:"low,omitempty"`
	LowTime         *int64 `json:"lowTime,omitempty"`
	AvgHighPrice    *int64 `json:"avgHighPrice,omitempty"`
	HighPriceVolume *int64 `json:"highPriceVolume,omitempty"`
	AvgLowPrice     *int64 `json:"avgLowPrice,omitempty"`
	LowPriceVolume  *int64 `json:"lowPriceVolume,omitempty"`
}

type rawSnapshot struct {
	Data      map[string]*rawPrice `json:"data"`
	Timestamp *int64               `json:"timestamp,omitempty"`
}

// Parse decodes a response body into a Snapshot. Every failure wraps ErrMalformed.
// Unknown fields are ignored; null item entries are skipped.
func Parse(body []byte) (*Snapshot, error) {
	var raw rawSnapshot
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if raw.Data == nil {
		return nil, fmt.Errorf("%w: missing data object", ErrMalformed)
	}

	items := make(map[int]Price, len(raw.Data))
	for key, rp := range raw.Data {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: item id %q: %w", ErrMalformed, key, err)
		}
		if rp == nil {
			continue
		}
		items[id] = Price{
			High:            value(rp.High),
			HighTime:        unixTime(rp.HighTime),
			Low:             value(rp.Low),
			LowTime:         unixTime(rp.LowTime),
			AvgHighPrice:    value(rp.AvgHighPrice),
			HighPriceVolume: value(rp.HighPriceVolume),
			AvgLowPrice:     value(rp.AvgLowPrice),
			LowPriceVolume:  value(rp.LowPriceVolume),
		}
	}
	return NewSnapshot(items, unixTime(raw.Timestamp)), nil
}

// MarshalJSON encodes the snapshot in the upstream shape.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	raw := rawSnapshot{Data: make(map[string]*rawPrice, len(s.items))}
	for id, p := range s.items {
		raw.Data[strconv.Itoa(id)] = p.raw()
	}
	if !s.timestamp.IsZero() {
		raw.Timestamp = ptr(s.timestamp.Unix())
	}
	return json.Marshal(raw)
}

// MarshalJSON encodes p in the upstream shape, omitting absent fields.
func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.raw())
}

func (p Price) raw() *rawPrice {
	return &rawPrice{
		High:            nonZero(p.High),
		HighTime:        unixPtr(p.HighTime),
		Low:             nonZero(p.Low),
		LowTime:         unixPtr(p.LowTime),
		AvgHighPrice:    nonZero(p.AvgHighPrice),
		HighPriceVolume: nonZero(p.HighPriceVolume),
		AvgLowPrice:     nonZero(p.AvgLowPrice),
		LowPriceVolume:  nonZero(p.LowPriceVolume),
	}
}

func value(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func unixTime(v *int64) time.Time {
	if v == nil || *v <= 0 {
		return time.Time{}
	}
	return time.Unix(*v, 0).UTC()
}

func nonZero(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

func unixPtr(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	return ptr(t.Unix())
}

func ptr[T any](v T) *T { return &v }
