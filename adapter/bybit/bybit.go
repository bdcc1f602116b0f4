package bybit

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yitech/candlefeed/adapter"
)

// Name is the exchange identifier used in configuration.
const Name = "bybit"

// intervals maps canonical intervals to Bybit spellings: plain minute counts
// below a day, then D/W/M.
var intervals = map[string]string{
	"1m":  "1",
	"3m":  "3",
	"5m":  "5",
	"15m": "15",
	"30m": "30",
	"1h":  "60",
	"2h":  "120",
	"4h":  "240",
	"6h":  "360",
	"12h": "720",
	"1d":  "D",
	"1w":  "W",
	"1M":  "M",
}

// Adapter is the Bybit V5 exchange adapter.
type Adapter struct {
	client *Client
	proto  Protocol
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCategory selects the market: "spot" (default), "linear" or "inverse".
func WithCategory(category string) Option {
	return func(a *Adapter) {
		a.client.category = category
		a.proto.url = wsBaseURL + category
	}
}

// WithBaseURL points the REST client at another host.
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.client.http.SetBaseURL(u) }
}

// WithStreamURL overrides the WebSocket endpoint.
func WithStreamURL(u string) Option {
	return func(a *Adapter) { a.proto.url = u }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{
		client: NewClient(resty.New().SetBaseURL(restURL).SetTimeout(30*time.Second), "spot"),
		proto:  Protocol{url: wsBaseURL + "spot"},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

// Symbol converts "BTC-USDT" to "BTCUSDT".
func (a *Adapter) Symbol(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(pair), "-", "")
}

func (a *Adapter) Interval(interval string) (string, error) {
	v, ok := intervals[interval]
	if !ok {
		return "", fmt.Errorf("bybit: %w: %s", adapter.ErrUnsupportedInterval, interval)
	}
	return v, nil
}

func (a *Adapter) Protocol() adapter.Protocol     { return a.proto }
func (a *Adapter) Historical() adapter.Historical { return a.client }

var _ adapter.Venue = (*Adapter)(nil)
