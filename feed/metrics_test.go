package feed

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/candlefeed/model/candle"
)

func TestMetrics_SeparatedByInterval(t *testing.T) {
	minute := newFeedFixture(t, Config{Pair: "ETH-USDT", Interval: "1m", MaxRecords: 10}, base+70,
		func(start, end int64) ([]candle.Candle, error) {
			return []candle.Candle{mkCandle(base, 1)}, nil
		},
		updateFrame(base+60, "2"),
	)
	hour := newFeedFixture(t, Config{Pair: "ETH-USDT", Interval: "1h", MaxRecords: 10}, base+70,
		func(start, end int64) ([]candle.Candle, error) {
			cs := make([]candle.Candle, 7)
			for i := range cs {
				cs[i] = mkCandle(base-int64(6-i)*3600, 1)
			}
			return cs, nil
		},
	)

	require.NoError(t, minute.feed.Start(context.Background()))
	require.NoError(t, hour.feed.Start(context.Background()))
	require.Eventually(t, func() bool { return minute.feed.store.Len() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return hour.feed.State() == Streaming }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(storeCandles.WithLabelValues("fake", "ETH-USDT", "1m")))
	assert.Equal(t, 7.0, testutil.ToFloat64(storeCandles.WithLabelValues("fake", "ETH-USDT", "1h")))

	assert.Equal(t, 1.0, testutil.ToFloat64(framesTotal.WithLabelValues("fake", "ETH-USDT", "1m", "candles")))
	assert.Zero(t, testutil.ToFloat64(framesTotal.WithLabelValues("fake", "ETH-USDT", "1h", "candles")))

	require.NoError(t, minute.feed.Stop())
	assert.Equal(t, float64(Cancelled), testutil.ToFloat64(supervisorState.WithLabelValues("fake", "ETH-USDT", "1m")))
	assert.Equal(t, float64(Streaming), testutil.ToFloat64(supervisorState.WithLabelValues("fake", "ETH-USDT", "1h")))
}
