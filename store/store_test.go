package store

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/candlefeed/model/candle"
)

func mk(openTime int64, close string) candle.Candle {
	p := decimal.RequireFromString(close)
	return candle.Candle{OpenTime: openTime, Open: p, High: p, Low: p, Close: p, Volume: decimal.NewFromInt(1)}
}

func openTimes(cs []candle.Candle) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.OpenTime
	}
	return out
}

func TestStore_Empty(t *testing.T) {
	s := New(10)
	assert.True(t, s.IsEmpty())
	assert.Empty(t, s.Snapshot())

	_, ok := s.LastOpenTime()
	assert.False(t, ok)
	_, ok = s.FirstOpenTime()
	assert.False(t, ok)
}

func TestStore_DefaultBound(t *testing.T) {
	assert.Equal(t, DefaultMaxRecords, New(0).Cap())
}

func TestStore_UpsertIdempotent(t *testing.T) {
	s := New(10)
	c := mk(120, "19128.1")

	s.Upsert(c)
	s.Upsert(c)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.True(t, snap[0].Equal(c))
}

func TestStore_OrderAndUniquenessAnyArrivalOrder(t *testing.T) {
	s := New(1000)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		s.Upsert(mk(int64(rng.Intn(200))*60, "1"))
	}

	snap := s.Snapshot()
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].OpenTime, snap[i].OpenTime, "index %d", i)
	}
	assert.LessOrEqual(t, len(snap), 200)
}

func TestStore_OutOfOrderArrival(t *testing.T) {
	s := New(10)
	s.Upsert(mk(1606292580, "2"))
	s.Upsert(mk(1606292500, "1"))

	assert.Equal(t, []int64{1606292500, 1606292580}, openTimes(s.Snapshot()))
}

func TestStore_BoundEvictsOldest(t *testing.T) {
	s := New(3)
	for i := int64(1); i <= 5; i++ {
		s.Upsert(mk(i*60, "1"))
	}

	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Full())
	assert.Equal(t, []int64{180, 240, 300}, openTimes(s.Snapshot()))

	// An insert older than everything held is evicted straight away.
	s.Upsert(mk(60, "1"))
	assert.Equal(t, []int64{180, 240, 300}, openTimes(s.Snapshot()))
}

func TestStore_UpdateInPlace(t *testing.T) {
	s := New(10)
	s.Upsert(mk(60, "1"))
	s.Upsert(mk(120, "1"))

	updated := mk(120, "3.5")
	s.Upsert(updated)

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.True(t, snap[1].Close.Equal(decimal.RequireFromString("3.5")))

	last, ok := s.LastOpenTime()
	require.True(t, ok)
	assert.Equal(t, int64(120), last)
}

func TestStore_SnapshotIsolatedFromLaterWrites(t *testing.T) {
	s := New(10)
	s.Upsert(mk(60, "1"))

	snap := s.Snapshot()
	s.Upsert(mk(60, "9"))
	s.Upsert(mk(120, "9"))

	require.Len(t, snap, 1)
	assert.True(t, snap[0].Close.Equal(decimal.NewFromInt(1)))

	snap[0].OpenTime = 999
	first, _ := s.FirstOpenTime()
	assert.Equal(t, int64(60), first)
}

func TestStore_UpsertAll(t *testing.T) {
	s := New(3)
	s.UpsertAll([]candle.Candle{mk(240, "1"), mk(60, "1"), mk(120, "1"), mk(180, "1"), mk(120, "2")})

	assert.Equal(t, []int64{120, 180, 240}, openTimes(s.Snapshot()))
	assert.True(t, s.Snapshot()[0].Close.Equal(decimal.NewFromInt(2)))

	s.UpsertAll(nil)
	assert.Equal(t, 3, s.Len())
}

func TestStore_ConcurrentReadersSeeSortedSeries(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			s.Upsert(mk(int64(i%300)*60, "1"))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				snap := s.Snapshot()
				for j := 1; j < len(snap); j++ {
					if snap[j-1].OpenTime >= snap[j].OpenTime {
						t.Errorf("unsorted snapshot at %d", j)
						return
					}
				}
				if len(snap) > 50 {
					t.Errorf("snapshot exceeds bound: %d", len(snap))
					return
				}
			}
		}()
	}
	wg.Wait()
}
