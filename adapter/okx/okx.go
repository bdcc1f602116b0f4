package okx

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yitech/candlefeed/adapter"
)

// Name is the exchange identifier used in configuration.
const Name = "okx"

// intervals maps canonical intervals to OKX bar strings. OKX uses uppercase
// H/D/W/M for hours and longer; lowercase m for minutes.
var intervals = map[string]string{
	"1s":  "1s",
	"1m":  "1m",
	"3m":  "3m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1H",
	"2h":  "2H",
	"4h":  "4H",
	"6h":  "6Hutc",
	"12h": "12Hutc",
	"1d":  "1Dutc",
	"3d":  "3Dutc",
	"1w":  "1Wutc",
	"1M":  "1Mutc",
}

// Adapter is the OKX v5 exchange adapter.
type Adapter struct {
	client *Client
	proto  Protocol
}

// Option configures an Adapter.
type Option func(*Adapter)

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
		client: NewClient(resty.New().SetBaseURL(baseURL).SetTimeout(30 * time.Second)),
		proto:  Protocol{url: wsEndpoint},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

// Symbol upper-cases the pair; OKX instrument ids are already "BTC-USDT".
func (a *Adapter) Symbol(pair string) string { return strings.ToUpper(pair) }

func (a *Adapter) Interval(interval string) (string, error) {
	v, ok := intervals[interval]
	if !ok {
		return "", fmt.Errorf("okx: %w: %s", adapter.ErrUnsupportedInterval, interval)
	}
	return v, nil
}

func (a *Adapter) Protocol() adapter.Protocol     { return a.proto }
func (a *Adapter) Historical() adapter.Historical { return a.client }

var _ adapter.Venue = (*Adapter)(nil)
