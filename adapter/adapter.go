package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/yitech/candlefeed/model/candle"
)

// ErrUnsupportedInterval is returned when a venue has no equivalent of a
// canonical interval.
var ErrUnsupportedInterval = errors.New("unsupported interval")

// FrameKind classifies a decoded streaming frame.
type FrameKind int

const (
	// FrameCandles carries one or more candle updates.
	FrameCandles FrameKind = iota
	// FrameIgnorable is a control frame (subscribe ack, pong) with no data.
	FrameIgnorable
	// FrameMalformed did not match the venue schema.
	FrameMalformed
)

func (k FrameKind) String() string {
	switch k {
	case FrameCandles:
		return "candles"
	case FrameIgnorable:
		return "ignorable"
	case FrameMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Frame is the result of decoding one inbound message.
type Frame struct {
	Kind    FrameKind
	Candles []candle.Candle
	Err     error // set for FrameMalformed
}

// Candles wraps decoded candles in a frame.
func Candles(cs ...candle.Candle) Frame { return Frame{Kind: FrameCandles, Candles: cs} }

// Ignorable returns a control frame.
func Ignorable() Frame { return Frame{Kind: FrameIgnorable} }

// Malformed returns a frame that failed to decode.
func Malformed(err error) Frame { return Frame{Kind: FrameMalformed, Err: err} }

// Protocol translates between a venue's streaming wire format and candles.
// Implementations are stateless and safe for concurrent use.
type Protocol interface {
	// URL is the streaming endpoint to dial.
	URL() string

	// SubscribeRequest builds the subscribe message for a venue symbol and
	// venue interval. now supplies the request time/id tag.
	SubscribeRequest(symbol, interval string, now time.Time) ([]byte, error)

	// DecodeFrame classifies raw. It never fails: bad input yields a
	// FrameMalformed.
	DecodeFrame(raw []byte) Frame
}

// Heartbeater is implemented by protocols that need application-level pings.
type Heartbeater interface {
	HeartbeatInterval() time.Duration
	Heartbeat(now time.Time) []byte
}

// Historical fetches closed candles over a time range. start and end are unix
// seconds, inclusive. Implementations page through the venue API until the
// range is covered and return candles ascending by OpenTime.
type Historical interface {
	FetchRange(ctx context.Context, symbol, interval string, start, end int64) ([]candle.Candle, error)
}

// HealthChecker is implemented by venues exposing a cheap liveness endpoint.
type HealthChecker interface {
	CheckNetwork(ctx context.Context) error
}

// Venue is the contract each exchange adapter fulfils.
type Venue interface {
	// Name is the exchange identifier used in config and logs.
	Name() string

	// Symbol converts a "BASE-QUOTE" trading pair to the venue's format.
	Symbol(pair string) string

	// Interval converts a canonical interval ("1m", "1h") to the venue's
	// spelling, or returns ErrUnsupportedInterval.
	Interval(interval string) (string, error)

	Protocol() Protocol
	Historical() Historical
}
