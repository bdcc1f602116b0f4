package bybit

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/model/candle"
)

const wsBaseURL = "wss://stream.bybit.com/v5/public/"

// pingInterval is how often we send a heartbeat to keep the connection alive.
const pingInterval = 20 * time.Second

// Protocol is the Bybit V5 kline stream codec.
type Protocol struct {
	url string
}

func (p Protocol) URL() string { return p.url }

// SubscribeRequest builds {"op":"subscribe","args":["kline.<interval>.<symbol>"],"req_id":"<unix>"}.
func (p Protocol) SubscribeRequest(symbol, interval string, now time.Time) ([]byte, error) {
	return json.Marshal(map[string]any{
		"op":     "subscribe",
		"args":   []string{fmt.Sprintf("kline.%s.%s", interval, symbol)},
		"req_id": strconv.FormatInt(now.Unix(), 10),
	})
}

// Bybit requires a ping every 20 s or it closes the connection.
func (p Protocol) HeartbeatInterval() time.Duration { return pingInterval }

func (p Protocol) Heartbeat(time.Time) []byte { return []byte(`{"op":"ping"}`) }

// wsMsg is the generic Bybit V5 WebSocket message envelope.
type wsMsg struct {
	Op      string          `json:"op"`      // "pong", "subscribe"
	Success *bool           `json:"success"` // subscription ack
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"` // "kline.1.BTCUSDT"
	Type    string          `json:"type"`  // "snapshot" | "delta"
	Data    json.RawMessage `json:"data"`
}

// klineEntry is one kline object inside the data array.
type klineEntry struct {
	Start    int64  `json:"start"` // open time (ms)
	Interval string `json:"interval"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Turnover string `json:"turnover"`
	Confirm  bool   `json:"confirm"`
}

func (p Protocol) DecodeFrame(raw []byte) adapter.Frame {
	var m wsMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return adapter.Malformed(fmt.Errorf("bybit: %w", err))
	}

	// Control messages (pong, subscribe ack).
	if m.Topic == "" {
		if m.Success != nil && !*m.Success {
			return adapter.Malformed(fmt.Errorf("bybit: %s failed: %s", m.Op, m.RetMsg))
		}
		return adapter.Ignorable()
	}

	var entries []klineEntry
	if err := json.Unmarshal(m.Data, &entries); err != nil {
		return adapter.Malformed(fmt.Errorf("bybit: data: %w", err))
	}
	if len(entries) == 0 {
		return adapter.Ignorable()
	}

	out := make([]candle.Candle, 0, len(entries))
	for _, e := range entries {
		c, err := candle.Parse(e.Start/1000, candle.OHLCV{
			Open: e.Open, High: e.High, Low: e.Low, Close: e.Close, Volume: e.Volume, QuoteVolume: e.Turnover,
		})
		if err != nil {
			return adapter.Malformed(fmt.Errorf("bybit: %w", err))
		}
		out = append(out, c)
	}
	return adapter.Candles(out...)
}

var (
	_ adapter.Protocol    = Protocol{}
	_ adapter.Heartbeater = Protocol{}
)
