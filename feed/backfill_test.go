package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/candlefeed/model/candle"
)

func openTimes(cs []candle.Candle) []int64 {
	out := make([]int64, len(cs))
	for i, c := range cs {
		out[i] = c.OpenTime
	}
	return out
}

func TestBackfiller_FiltersSortsAndDedups(t *testing.T) {
	h := &fakeHistorical{fn: func(start, end int64) ([]candle.Candle, error) {
		return []candle.Candle{
			mkCandle(180, 1),
			mkCandle(0, 1),
			mkCandle(60, 1),
			mkCandle(120, 1),
			mkCandle(60, 2),
			mkCandle(240, 1),
		}, nil
	}}
	b := NewBackfiller(BackfillOptions{Historical: h, Symbol: "BTC_USDT", Interval: "1m"})

	got, err := b.FetchRange(context.Background(), 60, 180)
	require.NoError(t, err)
	assert.Equal(t, []int64{60, 120, 180}, openTimes(got))
	assert.Equal(t, "2", got[0].Close.String(), "later duplicate wins")
	assert.Equal(t, []rangeCall{{60, 180}}, h.ranges())
}

func TestBackfiller_WrapsErrors(t *testing.T) {
	cause := errors.New("503 Service Unavailable")
	h := &fakeHistorical{fn: func(start, end int64) ([]candle.Candle, error) { return nil, cause }}
	b := NewBackfiller(BackfillOptions{Historical: h})

	_, err := b.FetchRange(context.Background(), 0, 600)
	var be *BackfillError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, int64(0), be.Start)
	assert.Equal(t, int64(600), be.End)
	assert.ErrorIs(t, err, cause)
}

func TestBackfiller_CancellationIsNotWrapped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &fakeHistorical{fn: func(start, end int64) ([]candle.Candle, error) {
		cancel()
		return nil, context.Canceled
	}}
	b := NewBackfiller(BackfillOptions{Historical: h})

	_, err := b.FetchRange(ctx, 0, 600)
	require.ErrorIs(t, err, context.Canceled)
	var be *BackfillError
	assert.False(t, errors.As(err, &be))
}

func TestBackfiller_InvalidRange(t *testing.T) {
	h := &fakeHistorical{}
	b := NewBackfiller(BackfillOptions{Historical: h})

	_, err := b.FetchRange(context.Background(), 600, 0)
	var be *BackfillError
	require.ErrorAs(t, err, &be)
	assert.Empty(t, h.ranges())
}
