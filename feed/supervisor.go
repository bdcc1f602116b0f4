package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/transport"
)

// DefaultReconnectDelay is the fixed pause between streaming sessions.
const DefaultReconnectDelay = time.Second

// State is the connection supervisor's lifecycle state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Subscribing
	Streaming
	Cancelled
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribing:
		return "subscribing"
	case Streaming:
		return "streaming"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SupervisorStats is a point-in-time view of supervisor counters.
type SupervisorStats struct {
	Sessions        int64
	Reconnects      int64
	Candles         int64
	MalformedFrames int64
	LastError       string
}

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Protocol adapter.Protocol
	Dialer   transport.Dialer
	// Symbol and Interval are in the venue's spelling.
	Symbol   string
	Interval string

	// Backoff decides the pause after a failed session. Defaults to a
	// constant DefaultReconnectDelay. Returning backoff.Stop ends Run.
	Backoff backoff.BackOff
	// Sleep waits d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time

	Logger   logrus.FieldLogger
	Exchange string
	Pair     string

	metrics *feedMetrics
}

// Supervisor owns one streaming subscription: it connects, subscribes,
// forwards decoded candles and reconnects after any transport failure until
// its context is cancelled.
type Supervisor struct {
	proto    adapter.Protocol
	dialer   transport.Dialer
	symbol   string
	interval string
	backoff  backoff.BackOff
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	logger   logrus.FieldLogger
	metrics  *feedMetrics

	state     atomic.Int32
	sessions  atomic.Int64
	reconnect atomic.Int64
	candles   atomic.Int64
	malformed atomic.Int64

	mu      sync.Mutex
	lastErr error
}

// NewSupervisor creates a supervisor in the Disconnected state.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	s := &Supervisor{
		proto:    opts.Protocol,
		dialer:   opts.Dialer,
		symbol:   opts.Symbol,
		interval: opts.Interval,
		backoff:  opts.Backoff,
		sleep:    opts.Sleep,
		now:      opts.Now,
		logger:   opts.Logger,
		metrics:  opts.metrics,
	}
	if s.metrics == nil {
		s.metrics = newFeedMetrics(opts.Exchange, opts.Pair, opts.Interval)
	}
	if s.backoff == nil {
		s.backoff = backoff.NewConstantBackOff(DefaultReconnectDelay)
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logrus.New()
	}
	s.logger = s.logger.WithFields(logrus.Fields{
		"exchange": opts.Exchange,
		"pair":     opts.Pair,
		"interval": opts.Interval,
	})
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// Stats returns the supervisor counters.
func (s *Supervisor) Stats() SupervisorStats {
	st := SupervisorStats{
		Sessions:        s.sessions.Load(),
		Reconnects:      s.reconnect.Load(),
		Candles:         s.candles.Load(),
		MalformedFrames: s.malformed.Load(),
	}
	s.mu.Lock()
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.Unlock()
	return st
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.state.Set(float64(st))
}

// Run streams until ctx is cancelled, calling onCandle for every decoded
// candle in arrival order. onCandle runs on the receive goroutine. Run returns
// ctx.Err() on cancellation and never redials after it.
func (s *Supervisor) Run(ctx context.Context, onCandle func(candle.Candle)) error {
	for {
		if err := ctx.Err(); err != nil {
			s.setState(Cancelled)
			return err
		}

		err := s.session(ctx, onCandle)
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.setState(Cancelled)
			return ctxErr
		}
		s.setState(Disconnected)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		delay := s.backoff.NextBackOff()
		if delay == backoff.Stop {
			s.logger.WithError(err).Error("Unexpected error occurred when listening to public klines. Giving up.")
			return fmt.Errorf("supervisor: %w", err)
		}
		s.reconnect.Add(1)
		s.metrics.reconnects.Inc()
		s.logger.WithError(err).Errorf("Unexpected error occurred when listening to public klines. Retrying in %g seconds...", delay.Seconds())

		if err := s.sleep(ctx, delay); err != nil {
			s.setState(Cancelled)
			return err
		}
	}
}

// session runs one connect/subscribe/receive cycle. It always returns a
// non-nil error; the caller decides whether it was a cancellation.
func (s *Supervisor) session(ctx context.Context, onCandle func(candle.Candle)) error {
	s.sessions.Add(1)
	logger := s.logger.WithField("session", uuid.NewString())

	s.setState(Connecting)
	logger.WithField("url", s.proto.URL()).Debug("connecting")
	conn, err := s.dialer.Dial(ctx, s.proto.URL())
	if err != nil {
		return &TransportError{Op: "dial", Err: err}
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close the connection when the session ends or the context is cancelled.
	go func() {
		<-sctx.Done()
		conn.Close()
	}()

	s.setState(Subscribing)
	req, err := s.proto.SubscribeRequest(s.symbol, s.interval, s.now())
	if err != nil {
		return fmt.Errorf("build subscribe request: %w", err)
	}
	if err := conn.WriteMessage(req); err != nil {
		return &TransportError{Op: "subscribe", Err: err}
	}
	logger.Info("Subscribed to public klines")

	if hb, ok := s.proto.(adapter.Heartbeater); ok {
		go s.heartbeat(sctx, conn, hb, logger)
	}

	s.setState(Streaming)
	s.backoff.Reset()

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}

		f := s.proto.DecodeFrame(raw)
		s.metrics.frames[f.Kind.String()].Inc()
		switch f.Kind {
		case adapter.FrameCandles:
			for _, c := range f.Candles {
				s.candles.Add(1)
				onCandle(c)
			}
		case adapter.FrameMalformed:
			s.malformed.Add(1)
			logger.WithError(&MalformedFrameError{Frame: raw, Err: f.Err}).Warn("Dropping malformed frame")
		}
	}
}

// heartbeat writes protocol pings until ctx is done or a write fails. A
// failed write is left for the read loop to surface.
func (s *Supervisor) heartbeat(ctx context.Context, conn transport.Conn, hb adapter.Heartbeater, logger logrus.FieldLogger) {
	ticker := time.NewTicker(hb.HeartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(hb.Heartbeat(s.now())); err != nil {
				logger.WithError(err).Debug("heartbeat failed")
				return
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
