package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/candlefeed/adapter"
)

func TestFetchRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinePath, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1718000000000", r.URL.Query().Get("startTime"))
		_, _ = w.Write([]byte(`[
			[1718000000000,"67000.1","67100.0","66950.5","67050.0","12.5",1718000059999,"837500.0",420,"6.1","408900.0","0"],
			[1718000060000,"67050.0","67060.0","67000.0","67010.0","3.2",1718000119999,"214400.0",88,"1.0","67010.0","0"]
		]`))
	}))
	defer srv.Close()

	a := New(WithBaseURL(srv.URL))
	got, err := a.Historical().FetchRange(context.Background(), "BTCUSDT", "1m", 1718000000, 1718000060)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1718000000), got[0].OpenTime)
	assert.Equal(t, int64(420), got[0].Trades)
	assert.Equal(t, "6.1", got[0].TakerBuyBaseVolume.String())
	assert.Equal(t, "837500", got[0].QuoteVolume.String())
	assert.Equal(t, int64(1718000060), got[1].OpenTime)
}

func TestFetchRange_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).Historical().FetchRange(context.Background(), "NOPE", "1m", 0, 60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid symbol.")
}

func TestSubscribeRequest(t *testing.T) {
	raw, err := Protocol{}.SubscribeRequest("BTCUSDT", "1m", time.Unix(42, 0))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "SUBSCRIBE", got["method"])
	assert.Equal(t, []any{"btcusdt@kline_1m"}, got["params"])
	assert.Equal(t, float64(42), got["id"])
}

func TestDecodeFrame(t *testing.T) {
	p := Protocol{}

	f := p.DecodeFrame([]byte(`{"e":"kline","E":1718000001000,"s":"BTCUSDT","k":{"t":1718000000000,"T":1718000059999,
		"s":"BTCUSDT","i":"1m","o":"67000.1","c":"67050.0","h":"67100.0","l":"66950.5","v":"12.5","n":420,
		"x":false,"q":"837500.0","V":"6.1","Q":"408900.0"}}`))
	require.Equal(t, adapter.FrameCandles, f.Kind)
	require.Len(t, f.Candles, 1)
	assert.Equal(t, int64(1718000000), f.Candles[0].OpenTime)
	assert.Equal(t, "408900", f.Candles[0].TakerBuyQuoteVolume.String())

	assert.Equal(t, adapter.FrameIgnorable, p.DecodeFrame([]byte(`{"result":null,"id":1}`)).Kind)
	assert.Equal(t, adapter.FrameMalformed, p.DecodeFrame([]byte(`{"e":"trade"}`)).Kind)
	assert.Equal(t, adapter.FrameMalformed, p.DecodeFrame([]byte(`{"error":{"code":2,"msg":"Invalid request"},"id":1}`)).Kind)
	assert.Equal(t, adapter.FrameMalformed, p.DecodeFrame([]byte(`[`)).Kind)
}

func TestAdapter(t *testing.T) {
	a := New()
	assert.Equal(t, "BTCUSDT", a.Symbol("btc-usdt"))
	v, err := a.Interval("4h")
	require.NoError(t, err)
	assert.Equal(t, "4h", v)
	_, err = a.Interval("7m")
	assert.ErrorIs(t, err, adapter.ErrUnsupportedInterval)
}
