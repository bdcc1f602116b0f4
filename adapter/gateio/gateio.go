package gateio

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/yitech/candlefeed/adapter"
)

// Name is the exchange identifier used in configuration.
const Name = "gate_io"

// intervals maps canonical intervals to Gate.io spellings.
var intervals = map[string]string{
	"1s":  "1s",
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"30m": "30m",
	"1h":  "1h",
	"4h":  "4h",
	"8h":  "8h",
	"1d":  "1d",
	"1w":  "7d",
	"1M":  "30d",
}

// Adapter is the Gate.io spot exchange adapter.
type Adapter struct {
	client *Client
	proto  Protocol
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBaseURL points the REST client at another host (tests, testnet).
func WithBaseURL(u string) Option {
	return func(a *Adapter) { a.client.http.SetBaseURL(u) }
}

// WithStreamURL overrides the WebSocket endpoint.
func WithStreamURL(u string) Option {
	return func(a *Adapter) { a.proto.url = u }
}

// New creates a Gate.io adapter.
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

// Symbol converts "BTC-USDT" to "BTC_USDT".
func (a *Adapter) Symbol(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(pair), "-", "_")
}

func (a *Adapter) Interval(interval string) (string, error) {
	v, ok := intervals[interval]
	if !ok {
		return "", fmt.Errorf("gateio: %w: %s", adapter.ErrUnsupportedInterval, interval)
	}
	return v, nil
}

func (a *Adapter) Protocol() adapter.Protocol     { return a.proto }
func (a *Adapter) Historical() adapter.Historical { return a.client }

// CheckNetwork pings the server time endpoint.
func (a *Adapter) CheckNetwork(ctx context.Context) error {
	resp, err := a.client.http.R().SetContext(ctx).Get(healthPath)
	if err != nil {
		return fmt.Errorf("gateio: check network: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("gateio: check network: unexpected status %s", resp.Status())
	}
	return nil
}

var (
	_ adapter.Venue         = (*Adapter)(nil)
	_ adapter.HealthChecker = (*Adapter)(nil)
)
