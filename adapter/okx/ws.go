package okx

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yitech/candlefeed/adapter"
)

// Candle channels live on the business endpoint.
const wsEndpoint = "wss://ws.okx.com:8443/ws/v5/business"

// OKX drops idle connections after 30 s; a plain "ping" keeps them open.
const pingInterval = 25 * time.Second

// Protocol is the OKX candle stream codec.
type Protocol struct {
	url string
}

func (p Protocol) URL() string { return p.url }

// SubscribeRequest builds {"op":"subscribe","args":[{"channel":"candle<bar>","instId":...}]}.
// OKX has no request timestamp on public subscriptions, so now is unused.
func (p Protocol) SubscribeRequest(instID, bar string, _ time.Time) ([]byte, error) {
	return json.Marshal(map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "candle" + bar, "instId": instID},
		},
	})
}

func (p Protocol) HeartbeatInterval() time.Duration { return pingInterval }

func (p Protocol) Heartbeat(time.Time) []byte { return []byte("ping") }

// wsMsg is the generic OKX WebSocket message envelope.
type wsMsg struct {
	Event string `json:"event"` // "subscribe", "error"
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

func (p Protocol) DecodeFrame(raw []byte) adapter.Frame {
	if string(raw) == "pong" {
		return adapter.Ignorable()
	}

	var m wsMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return adapter.Malformed(fmt.Errorf("okx: %w", err))
	}

	// Subscription ack or error, no candle data.
	if m.Event != "" {
		if m.Event == "error" {
			return adapter.Malformed(fmt.Errorf("okx: api error %s: %s", m.Code, m.Msg))
		}
		return adapter.Ignorable()
	}
	if len(m.Data) == 0 {
		return adapter.Ignorable()
	}

	out, err := parseKlines(m.Data)
	if err != nil {
		return adapter.Malformed(err)
	}
	return adapter.Candles(out...)
}

var (
	_ adapter.Protocol    = Protocol{}
	_ adapter.Heartbeater = Protocol{}
)
