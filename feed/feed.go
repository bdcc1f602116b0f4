package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/model/candle"
	"github.com/yitech/candlefeed/model/interval"
	"github.com/yitech/candlefeed/store"
	"github.com/yitech/candlefeed/transport"
)

// liveBuffer absorbs bursts between the receive loop and the writer.
const liveBuffer = 256

// CandleHandler receives every candle applied to the store. It runs on the
// writer goroutine and must not block.
type CandleHandler func(c candle.Candle)

// Token represents an active subscription.
type Token interface {
	Unsubscribe()
}

// Config selects what a Feed tracks.
type Config struct {
	Pair       string // "BASE-QUOTE"
	Interval   string // canonical, e.g. "1m"
	MaxRecords int

	// InitialWindow is how far back Start seeds. Zero means
	// MaxRecords intervals.
	InitialWindow time.Duration
	// ReconnectDelay is the pause between streaming sessions.
	ReconnectDelay time.Duration
}

// Options carries the Feed's collaborators.
type Options struct {
	Venue  adapter.Venue
	Dialer transport.Dialer
	Logger logrus.FieldLogger
	Now    func() time.Time
	// Sleep overrides the supervisor's backoff wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Feed keeps a bounded, ordered window of candles for one pair on one venue:
// seeded from history, updated from the stream, with gaps repaired from
// history. A single goroutine owns all store writes.
type Feed struct {
	cfg         Config
	venue       adapter.Venue
	intervalSec int64
	now         func() time.Time
	logger      logrus.FieldLogger
	metrics     *feedMetrics

	store      *store.Store
	backfiller *Backfiller
	supervisor *Supervisor

	repairs chan []candle.Candle
	wg      sync.WaitGroup

	mu       sync.Mutex
	handlers map[*token]CandleHandler
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
}

// New validates cfg against the venue and wires the feed components. Nothing
// touches the network until Start.
func New(cfg Config, opts Options) (*Feed, error) {
	if opts.Venue == nil {
		return nil, errors.New("feed: venue is required")
	}
	if opts.Dialer == nil {
		return nil, errors.New("feed: dialer is required")
	}
	if cfg.Pair == "" {
		return nil, errors.New("feed: pair is required")
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = store.DefaultMaxRecords
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	sec, err := interval.Seconds(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	venueInterval, err := opts.Venue.Interval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("feed: %s %s: %w", opts.Venue.Name(), cfg.Interval, err)
	}
	if cfg.InitialWindow <= 0 {
		cfg.InitialWindow = time.Duration(int64(cfg.MaxRecords)*sec) * time.Second
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	exchange := opts.Venue.Name()
	symbol := opts.Venue.Symbol(cfg.Pair)

	f := &Feed{
		cfg:         cfg,
		venue:       opts.Venue,
		intervalSec: sec,
		now:         now,
		logger: logger.WithFields(logrus.Fields{
			"exchange": exchange,
			"pair":     cfg.Pair,
			"interval": cfg.Interval,
		}),
		metrics:  newFeedMetrics(exchange, cfg.Pair, cfg.Interval),
		store:    store.New(cfg.MaxRecords),
		repairs:  make(chan []candle.Candle),
		handlers: make(map[*token]CandleHandler),
		done:     make(chan struct{}),
	}
	f.backfiller = NewBackfiller(BackfillOptions{
		Historical: opts.Venue.Historical(),
		Symbol:     symbol,
		Interval:   venueInterval,
		Logger:     logger,
		Exchange:   exchange,
		Pair:       cfg.Pair,
		metrics:    f.metrics,
	})
	f.supervisor = NewSupervisor(SupervisorOptions{
		Protocol: opts.Venue.Protocol(),
		Dialer:   opts.Dialer,
		Symbol:   symbol,
		Interval: venueInterval,
		Backoff:  backoff.NewConstantBackOff(cfg.ReconnectDelay),
		Sleep:    opts.Sleep,
		Now:      now,
		Logger:   logger,
		Exchange: exchange,
		Pair:     cfg.Pair,
		metrics:  f.metrics,
	})
	return f, nil
}

// Name identifies the feed as exchange:pair:interval.
func (f *Feed) Name() string {
	return f.venue.Name() + ":" + f.cfg.Pair + ":" + f.cfg.Interval
}

// Config returns the effective configuration.
func (f *Feed) Config() Config { return f.cfg }

// Start seeds the store from history and then begins streaming. A backfill
// failure is returned and nothing is started. ctx bounds the feed's lifetime;
// Stop may be called at any point, including during the seed.
func (f *Feed) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	if f.started {
		f.mu.Unlock()
		cancel()
		return errors.New("feed: already started")
	}
	f.started = true
	f.cancel = cancel
	f.mu.Unlock()

	end := f.now().Unix()
	start := interval.Floor(end-int64(f.cfg.InitialWindow/time.Second), f.intervalSec)
	seed, err := f.backfiller.FetchRange(runCtx, start, end)
	if err != nil {
		if runCtx.Err() == nil {
			f.logger.WithError(err).Error("Initial backfill failed")
		}
		cancel()
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
		return err
	}
	f.store.UpsertAll(seed)
	f.metrics.storeCandles.Set(float64(f.store.Len()))
	f.logger.WithFields(logrus.Fields{
		"from":    start,
		"to":      end,
		"candles": len(seed),
	}).Info("Seeded candle store")

	go f.run(runCtx)
	return nil
}

// Stop cancels streaming and waits for the writer to exit. A clean
// cancellation returns nil.
func (f *Feed) Stop() error {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-f.done
	if err := f.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Done is closed once the writer has exited.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Err returns the error that ended the feed, if any.
func (f *Feed) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Snapshot returns the current candles, ascending by OpenTime.
func (f *Feed) Snapshot() []candle.Candle { return f.store.Snapshot() }

// Ready reports whether the store holds MaxRecords candles.
func (f *Feed) Ready() bool { return f.store.Full() }

// State returns the streaming supervisor's state.
func (f *Feed) State() State { return f.supervisor.State() }

// Stats returns the streaming supervisor's counters.
func (f *Feed) Stats() SupervisorStats { return f.supervisor.Stats() }

// CheckNetwork pings the venue's REST API when it exposes a health endpoint.
func (f *Feed) CheckNetwork(ctx context.Context) error {
	if hc, ok := f.venue.(adapter.HealthChecker); ok {
		return hc.CheckNetwork(ctx)
	}
	return nil
}

// Subscribe registers handler for every candle applied after this call.
// Call Unsubscribe on the returned Token to stop receiving updates.
func (f *Feed) Subscribe(handler CandleHandler) Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &token{feed: f}
	f.handlers[t] = handler
	return t
}

type token struct {
	feed *Feed
}

func (t *token) Unsubscribe() {
	t.feed.mu.Lock()
	delete(t.feed.handlers, t)
	t.feed.mu.Unlock()
}

func (f *Feed) publish(cs ...candle.Candle) {
	f.mu.Lock()
	hs := make([]CandleHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.Unlock()

	for _, c := range cs {
		for _, h := range hs {
			h(c)
		}
	}
}

// run is the single writer. It owns every store mutation after Start.
func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	live := make(chan candle.Candle, liveBuffer)
	supErr := make(chan error, 1)
	go func() {
		supErr <- f.supervisor.Run(ctx, func(c candle.Candle) {
			select {
			case live <- c:
			case <-ctx.Done():
			}
		})
	}()

	for {
		select {
		case c := <-live:
			f.merge(ctx, c)
		case cs := <-f.repairs:
			f.applyRepair(cs)
		case err := <-supErr:
			f.mu.Lock()
			f.err = err
			cancel := f.cancel
			f.mu.Unlock()
			cancel()
			f.wg.Wait()
			f.logger.WithField("state", f.supervisor.State()).Info("Feed stopped")
			return
		}
	}
}

func (f *Feed) merge(ctx context.Context, c candle.Candle) {
	last, ok := f.store.LastOpenTime()
	f.store.Upsert(c)
	f.metrics.storeCandles.Set(float64(f.store.Len()))
	f.publish(c)

	if !ok || c.OpenTime <= last+f.intervalSec {
		return
	}
	from, to := last+f.intervalSec, c.OpenTime-f.intervalSec
	// Only the newest MaxRecords buckets can survive eviction.
	if oldest := c.OpenTime - int64(f.cfg.MaxRecords)*f.intervalSec; from < oldest {
		from = oldest
	}
	if to < from {
		// Off-grid timestamps: nothing fits between the two candles.
		return
	}
	f.metrics.gapsDetected.Inc()
	f.logger.WithFields(logrus.Fields{"from": from, "to": to}).Warn("Gap detected, backfilling")
	f.wg.Add(1)
	go f.repair(ctx, from, to)
}

func (f *Feed) repair(ctx context.Context, from, to int64) {
	defer f.wg.Done()
	cs, err := f.backfiller.FetchRange(ctx, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		f.metrics.gapRepairsFailed.Inc()
		f.logger.WithError(err).Error("Gap repair failed")
		return
	}
	select {
	case f.repairs <- cs:
	case <-ctx.Done():
	}
}

func (f *Feed) applyRepair(cs []candle.Candle) {
	f.store.UpsertAll(cs)
	f.metrics.storeCandles.Set(float64(f.store.Len()))
	f.metrics.gapRepairsOK.Inc()
	f.publish(cs...)
	f.logger.WithField("candles", len(cs)).Info("Gap repaired")
}
