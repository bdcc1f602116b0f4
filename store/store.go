// Package store holds the bounded, ordered candle series a feed maintains.
package store

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/yitech/candlefeed/model/candle"
)

// DefaultMaxRecords matches the history depth most strategies ask for.
const DefaultMaxRecords = 150

// Store is an ordered, deduplicated, bounded series of candles keyed by
// OpenTime.
//
// Writers are serialised by a mutex and publish a fresh slice on every
// mutation; readers load the published slice atomically, so Snapshot never
// blocks and never observes a half-applied upsert.
type Store struct {
	max int

	mu     sync.Mutex
	series atomic.Pointer[[]candle.Candle]
}

// New creates an empty store holding at most maxRecords candles.
// A non-positive maxRecords falls back to DefaultMaxRecords.
func New(maxRecords int) *Store {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	s := &Store{max: maxRecords}
	empty := make([]candle.Candle, 0)
	s.series.Store(&empty)
	return s
}

// Upsert inserts c, or replaces the candle with the same OpenTime.
// When the store grows past its bound the oldest candle is evicted.
func (s *Store) Upsert(c candle.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := upsert(s.load(), c, s.max)
	s.series.Store(&next)
}

// UpsertAll applies cs in order and publishes the result as one replace.
func (s *Store) UpsertAll(cs []candle.Candle) {
	if len(cs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.load()
	for _, c := range cs {
		next = upsert(next, c, s.max)
	}
	s.series.Store(&next)
}

// Snapshot returns an ordered copy of the current series.
func (s *Store) Snapshot() []candle.Candle {
	return slices.Clone(s.load())
}

// Len returns the number of candles held.
func (s *Store) Len() int { return len(s.load()) }

// Cap returns the store bound.
func (s *Store) Cap() int { return s.max }

// IsEmpty reports whether the store holds no candles.
func (s *Store) IsEmpty() bool { return s.Len() == 0 }

// Full reports whether the store holds as many candles as its bound.
func (s *Store) Full() bool { return s.Len() >= s.max }

// LastOpenTime returns the newest OpenTime; ok is false when empty.
func (s *Store) LastOpenTime() (ts int64, ok bool) {
	cur := s.load()
	if len(cur) == 0 {
		return 0, false
	}
	return cur[len(cur)-1].OpenTime, true
}

// FirstOpenTime returns the oldest OpenTime; ok is false when empty.
func (s *Store) FirstOpenTime() (ts int64, ok bool) {
	cur := s.load()
	if len(cur) == 0 {
		return 0, false
	}
	return cur[0].OpenTime, true
}

func (s *Store) load() []candle.Candle {
	return *s.series.Load()
}

// upsert returns a new slice with c merged into cur. cur is never modified,
// since readers may still hold it.
func upsert(cur []candle.Candle, c candle.Candle, max int) []candle.Candle {
	i, found := slices.BinarySearchFunc(cur, c.OpenTime, func(e candle.Candle, t int64) int {
		switch {
		case e.OpenTime < t:
			return -1
		case e.OpenTime > t:
			return 1
		}
		return 0
	})

	if found {
		next := slices.Clone(cur)
		next[i] = c
		return next
	}

	next := make([]candle.Candle, 0, len(cur)+1)
	next = append(next, cur[:i]...)
	next = append(next, c)
	next = append(next, cur[i:]...)
	if len(next) > max {
		next = next[len(next)-max:]
	}
	return next
}
