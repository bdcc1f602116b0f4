package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/adapter/gateio"
	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/transport"
)

const testStreamURL = "ws://stream.test/ws/v4/"

func mkCandle(ts int64, price int64) candle.Candle {
	p := decimal.NewFromInt(price)
	return candle.Candle{OpenTime: ts, Open: p, High: p, Low: p, Close: p, Volume: decimal.NewFromInt(1)}
}

func updateFrame(ts int64, price string) string {
	return fmt.Sprintf(`{"time":%d,"channel":"spot.candlesticks","event":"update","result":`+
		`{"t":"%d","v":"2362.32035","c":"%s","h":"%s","l":"%s","o":"%s","n":"1m_BTC_USDT","a":"3.8283"}}`,
		ts+100, ts, price, price, price, price)
}

// fakeConn serves queued frames, then blocks until closed or returns readErr
// once the queue is closed.
type fakeConn struct {
	frames    chan []byte
	readErr   error
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn(frames ...string) *fakeConn {
	c := &fakeConn{frames: make(chan []byte, len(frames)+16), closed: make(chan struct{}), readErr: io.EOF}
	for _, f := range frames {
		c.frames <- []byte(f)
	}
	return c
}

// hangup makes ReadMessage fail once the queued frames are drained.
func (c *fakeConn) hangup() *fakeConn {
	close(c.frames)
	return c
}

func (c *fakeConn) push(frame string) { c.frames <- []byte(frame) }

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case <-c.closed:
		return nil, errors.New("use of closed network connection")
	default:
	}
	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, c.readErr
		}
		return f, nil
	case <-c.closed:
		return nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.written = append(c.written, append([]byte(nil), b...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.written))
	for i, w := range c.written {
		out[i] = string(w)
	}
	return out
}

// fakeDialer hands out conns in order; errs[i], when set, fails dial i.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	errs  []error
	urls  []string
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := len(d.urls)
	d.urls = append(d.urls, url)
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	return nil, errors.New("no more connections")
}

func (d *fakeDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

type rangeCall struct{ start, end int64 }

type fakeHistorical struct {
	mu    sync.Mutex
	calls []rangeCall
	fn    func(start, end int64) ([]candle.Candle, error)
	// wait, when set, runs before fn and aborts the call on error.
	wait func(ctx context.Context) error
}

func (h *fakeHistorical) FetchRange(ctx context.Context, symbol, interval string, start, end int64) ([]candle.Candle, error) {
	h.mu.Lock()
	h.calls = append(h.calls, rangeCall{start, end})
	fn, wait := h.fn, h.wait
	h.mu.Unlock()
	if wait != nil {
		if err := wait(ctx); err != nil {
			return nil, err
		}
	}
	if fn == nil {
		return nil, nil
	}
	return fn(start, end)
}

func (h *fakeHistorical) ranges() []rangeCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]rangeCall(nil), h.calls...)
}

// fakeVenue speaks the Gate.io stream protocol over fake history.
type fakeVenue struct {
	proto      adapter.Protocol
	historical *fakeHistorical
}

func newFakeVenue(h *fakeHistorical) *fakeVenue {
	return &fakeVenue{proto: gateio.New(gateio.WithStreamURL(testStreamURL)).Protocol(), historical: h}
}

func (v *fakeVenue) Name() string { return "fake" }
func (v *fakeVenue) Symbol(pair string) string { return pair }
func (v *fakeVenue) Interval(i string) (string, error) { return i, nil }
func (v *fakeVenue) Protocol() adapter.Protocol { return v.proto }
func (v *fakeVenue) Historical() adapter.Historical { return v.historical }
func (v *fakeVenue) CheckNetwork(ctx context.Context) error { return nil }
