package binance

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/model/interval"
)

// Name is the exchange identifier used in configuration.
const Name = "binance"

// Adapter is the Binance spot exchange adapter. Binance spells intervals the
// same way as the canonical table.
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
		client: NewClient(resty.New().SetBaseURL(restURL).SetTimeout(30 * time.Second)),
		proto:  Protocol{url: wsURL},
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

func (a *Adapter) Interval(iv string) (string, error) {
	if !interval.Valid(iv) {
		return "", fmt.Errorf("binance: %w: %s", adapter.ErrUnsupportedInterval, iv)
	}
	return iv, nil
}

func (a *Adapter) Protocol() adapter.Protocol     { return a.proto }
func (a *Adapter) Historical() adapter.Historical { return a.client }

var _ adapter.Venue = (*Adapter)(nil)
