package main

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/rpc"
)

func bar(ts int64, low, high string) candle.Candle {
	return candle.Candle{
		OpenTime: ts,
		Open:     decimal.RequireFromString(low),
		High:     decimal.RequireFromString(high),
		Low:      decimal.RequireFromString(low),
		Close:    decimal.RequireFromString(high),
	}
}

func TestModelUpsert(t *testing.T) {
	m := newModel(rpc.FeedKey{Exchange: "gate_io", Pair: "BTC-USDT", Interval: "1m"}, 3, nil)

	m.upsert(bar(120, "1", "2"))
	m.upsert(bar(0, "1", "2"))
	m.upsert(bar(60, "1", "2"))
	m.upsert(bar(60, "1", "5"))
	assert.Len(t, m.candles, 3)
	assert.Equal(t, int64(0), m.candles[0].OpenTime)
	assert.Equal(t, "5", m.candles[1].High.String())

	m.upsert(bar(180, "1", "2"))
	assert.Len(t, m.candles, 3)
	assert.Equal(t, int64(60), m.candles[0].OpenTime)
	assert.Equal(t, int64(180), m.candles[2].OpenTime)
}

func TestPriceRange(t *testing.T) {
	hi, lo := priceRange([]candle.Candle{bar(0, "10", "12"), bar(60, "9.5", "11")})
	assert.Equal(t, 12.0, hi)
	assert.Equal(t, 9.5, lo)

	hi, lo = priceRange(nil)
	assert.Zero(t, hi)
	assert.Zero(t, lo)
}

func TestPriceToRow(t *testing.T) {
	assert.Equal(t, 0, priceToRow(12, 10, 12, 2))
	assert.Equal(t, 9, priceToRow(2, 10, 12, 2))
	assert.Equal(t, 9, priceToRow(-5, 10, 12, 2))
	assert.Equal(t, 12.0, rowToPrice(0, 10, 12, 2))
}

func TestTimeLabels(t *testing.T) {
	cs := make([]candle.Candle, 12)
	for i := range cs {
		cs[i] = bar(int64(i)*60, "1", "2")
	}
	line := timeLabels(cs)
	assert.Len(t, line, 24)
	assert.Equal(t, "00:00", line[:5])
	assert.Equal(t, "    ", line[20:], "label that would overflow is dropped")

	line = timeLabels(append(cs, bar(720, "1", "2")))
	assert.Equal(t, "00:10", line[20:25])
}
