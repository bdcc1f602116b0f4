package gateio

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/model/candle"
)

const (
	wsURL          = "wss://api.gateio.ws/ws/v4/"
	candleChannel  = "spot.candlesticks"
	pingChannel    = "spot.ping"
	pongChannel    = "spot.pong"
	pingInterval   = 10 * time.Second
	eventSubscribe = "subscribe"
	eventUpdate    = "update"
)

// Protocol is the Gate.io spot candlestick stream codec.
type Protocol struct {
	url string
}

func (p Protocol) URL() string { return p.url }

// SubscribeRequest builds
//
//	{"time": <unix>, "channel": "spot.candlesticks", "event": "subscribe", "payload": [interval, pair]}
func (p Protocol) SubscribeRequest(pair, interval string, now time.Time) ([]byte, error) {
	return json.Marshal(wsRequest{
		Time:    now.Unix(),
		Channel: candleChannel,
		Event:   eventSubscribe,
		Payload: []string{interval, pair},
	})
}

func (p Protocol) HeartbeatInterval() time.Duration { return pingInterval }

func (p Protocol) Heartbeat(now time.Time) []byte {
	b, _ := json.Marshal(wsRequest{Time: now.Unix(), Channel: pingChannel})
	return b
}

type wsRequest struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event,omitempty"`
	Payload []string `json:"payload,omitempty"`
}

// wsMsg is the generic Gate.io v4 WebSocket message envelope.
type wsMsg struct {
	Time    int64  `json:"time"`
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Result json.RawMessage `json:"result"`
}

// wsCandle is the candlestick update payload. Every value is a string.
type wsCandle struct {
	T string `json:"t"` // open time (s)
	V string `json:"v"` // quote volume
	C string `json:"c"`
	H string `json:"h"`
	L string `json:"l"`
	O string `json:"o"`
	A string `json:"a"` // base volume
	N string `json:"n"` // "<interval>_<pair>"
}

// DecodeFrame classifies one inbound Gate.io message.
// Gate.io reports t as the bucket start in seconds, which is used verbatim.
func (p Protocol) DecodeFrame(raw []byte) adapter.Frame {
	var m wsMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return adapter.Malformed(fmt.Errorf("gateio: %w", err))
	}
	if m.Error != nil {
		return adapter.Malformed(fmt.Errorf("gateio: api error %d: %s", m.Error.Code, m.Error.Message))
	}

	// Subscription ack, pong, or an envelope without data.
	if m.Channel == pongChannel || len(m.Result) == 0 || string(m.Result) == "null" {
		return adapter.Ignorable()
	}
	if m.Event != eventUpdate {
		return adapter.Ignorable()
	}
	if m.Channel != candleChannel {
		return adapter.Malformed(fmt.Errorf("gateio: unexpected channel %q", m.Channel))
	}

	var r wsCandle
	if err := json.Unmarshal(m.Result, &r); err != nil {
		return adapter.Malformed(fmt.Errorf("gateio: result: %w", err))
	}
	openTime, err := strconv.ParseInt(r.T, 10, 64)
	if err != nil {
		return adapter.Malformed(fmt.Errorf("gateio: open_time: %w", err))
	}

	c, err := candle.Parse(openTime, candle.OHLCV{
		Open:        r.O,
		High:        r.H,
		Low:         r.L,
		Close:       r.C,
		Volume:      r.A,
		QuoteVolume: r.V,
	})
	if err != nil {
		return adapter.Malformed(fmt.Errorf("gateio: %w", err))
	}
	return adapter.Candles(c)
}

var (
	_ adapter.Protocol    = Protocol{}
	_ adapter.Heartbeater = Protocol{}
)
