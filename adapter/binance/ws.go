package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yitech/candlefeed/adapter"
)

const wsURL = "wss://stream.binance.com:9443/ws"

// Protocol is the Binance kline stream codec.
type Protocol struct {
	url string
}

func (p Protocol) URL() string { return p.url }

// SubscribeRequest builds {"method":"SUBSCRIBE","params":["btcusdt@kline_1m"],"id":<unix>}.
func (p Protocol) SubscribeRequest(symbol, interval string, now time.Time) ([]byte, error) {
	return json.Marshal(map[string]any{
		"method": "SUBSCRIBE",
		"params": []string{strings.ToLower(symbol) + "@kline_" + interval},
		"id":     now.Unix(),
	})
}

// wsKlineMsg is the Binance kline stream message envelope. Subscription
// acks arrive as {"result":null,"id":N} and carry no event type.
type wsKlineMsg struct {
	EventType string          `json:"e"`
	Symbol    string          `json:"s"`
	ID        *int64          `json:"id"`
	Error     json.RawMessage `json:"error"`
	Kline     *struct {
		OpenTime            int64  `json:"t"`
		Open                string `json:"o"`
		High                string `json:"h"`
		Low                 string `json:"l"`
		Close               string `json:"c"`
		Volume              string `json:"v"`
		Trades              int64  `json:"n"`
		QuoteVolume         string `json:"q"`
		TakerBuyBaseVolume  string `json:"V"`
		TakerBuyQuoteVolume string `json:"Q"`
	} `json:"k"`
}

func (p Protocol) DecodeFrame(raw []byte) adapter.Frame {
	var m wsKlineMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return adapter.Malformed(fmt.Errorf("binance: %w", err))
	}
	if len(m.Error) > 0 && string(m.Error) != "null" {
		return adapter.Malformed(fmt.Errorf("binance: api error %s", m.Error))
	}
	if m.EventType == "" && m.ID != nil {
		return adapter.Ignorable()
	}
	if m.EventType != "kline" || m.Kline == nil {
		return adapter.Malformed(fmt.Errorf("binance: unexpected event type: %q", m.EventType))
	}

	k := m.Kline
	c, err := fromStrings(k.OpenTime, k.Trades, k.Open, k.High, k.Low, k.Close, k.Volume,
		k.QuoteVolume, k.TakerBuyBaseVolume, k.TakerBuyQuoteVolume)
	if err != nil {
		return adapter.Malformed(fmt.Errorf("binance: %w", err))
	}
	return adapter.Candles(c)
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

var _ adapter.Protocol = Protocol{}
