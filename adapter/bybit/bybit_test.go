package bybit

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

func TestFetchRange_ReversesToChronological(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "spot", r.URL.Query().Get("category"))
		assert.Equal(t, "60", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"list":[
			["1718007200000","3","4","2","3.5","10","35"],
			["1718003600000","2","3","1","2.5","10","25"]
		]}}`))
	}))
	defer srv.Close()

	got, err := New(WithBaseURL(srv.URL)).Historical().FetchRange(context.Background(), "BTCUSDT", "60", 1718003600, 1718007200)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1718003600), got[0].OpenTime)
	assert.Equal(t, int64(1718007200), got[1].OpenTime)
	assert.Equal(t, "35", got[1].QuoteVolume.String())
}

func TestFetchRange_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	}))
	defer srv.Close()

	_, err := New(WithBaseURL(srv.URL)).Historical().FetchRange(context.Background(), "BTCUSDT", "1", 0, 60)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params error")
}

func TestSubscribeRequest(t *testing.T) {
	raw, err := Protocol{}.SubscribeRequest("BTCUSDT", "1", time.Unix(7, 0))
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"subscribe","args":["kline.1.BTCUSDT"],"req_id":"7"}`, string(raw))
}

func TestDecodeFrame(t *testing.T) {
	p := Protocol{}

	f := p.DecodeFrame([]byte(`{"topic":"kline.1.BTCUSDT","type":"snapshot","ts":1718000001000,"data":[
		{"start":1718000000000,"end":1718000059999,"interval":"1","open":"1","close":"2","high":"2.5",
		 "low":"0.5","volume":"10","turnover":"15","confirm":false,"timestamp":1718000001000}]}`))
	require.Equal(t, adapter.FrameCandles, f.Kind)
	require.Len(t, f.Candles, 1)
	assert.Equal(t, int64(1718000000), f.Candles[0].OpenTime)
	assert.Equal(t, "2.5", f.Candles[0].High.String())

	assert.Equal(t, adapter.FrameIgnorable, p.DecodeFrame([]byte(`{"success":true,"ret_msg":"","op":"subscribe"}`)).Kind)
	assert.Equal(t, adapter.FrameIgnorable, p.DecodeFrame([]byte(`{"op":"pong"}`)).Kind)
	assert.Equal(t, adapter.FrameMalformed, p.DecodeFrame([]byte(`{"success":false,"ret_msg":"bad topic","op":"subscribe"}`)).Kind)
	assert.Equal(t, adapter.FrameMalformed, p.DecodeFrame([]byte(`{"topic":"kline.1.BTCUSDT","data":{"x":1}}`)).Kind)
}

func TestAdapter(t *testing.T) {
	a := New(WithCategory("linear"))
	assert.Equal(t, "wss://stream.bybit.com/v5/public/linear", a.Protocol().URL())

	v, err := a.Interval("1d")
	require.NoError(t, err)
	assert.Equal(t, "D", v)

	_, err = a.Interval("8h")
	assert.ErrorIs(t, err, adapter.ErrUnsupportedInterval)

	hb, ok := a.Protocol().(adapter.Heartbeater)
	require.True(t, ok)
	var ping map[string]string
	require.NoError(t, json.Unmarshal(hb.Heartbeat(time.Now()), &ping))
	assert.Equal(t, "ping", ping["op"])
}
