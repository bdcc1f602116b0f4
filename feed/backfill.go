package feed

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yitech/candlefeed/adapter"
	"github.com/yitech/candlefeed/model/candle"
)

// Backfiller turns time-ranged historical requests into ordered candles.
type Backfiller struct {
	historical adapter.Historical
	symbol     string
	interval   string
	logger     logrus.FieldLogger
	metrics    *feedMetrics
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	Historical adapter.Historical
	// Symbol and Interval are in the venue's spelling.
	Symbol   string
	Interval string
	Logger   logrus.FieldLogger

	// Exchange and Pair label metrics, together with Interval.
	Exchange string
	Pair     string

	metrics *feedMetrics
}

// NewBackfiller creates a historical backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	b := &Backfiller{
		historical: opts.Historical,
		symbol:     opts.Symbol,
		interval:   opts.Interval,
		logger:     logger,
		metrics:    opts.metrics,
	}
	if b.metrics == nil {
		b.metrics = newFeedMetrics(opts.Exchange, opts.Pair, opts.Interval)
	}
	return b
}

// FetchRange returns the candles with OpenTime in [start, end], ascending and
// unique. Failures come back as *BackfillError, except cancellation which is
// returned as the context error. Nothing is retried.
func (b *Backfiller) FetchRange(ctx context.Context, start, end int64) ([]candle.Candle, error) {
	if end < start {
		return nil, &BackfillError{Start: start, End: end, Err: errors.New("end before start")}
	}

	began := time.Now()
	cs, err := b.historical.FetchRange(ctx, b.symbol, b.interval, start, end)
	b.metrics.backfillDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &BackfillError{Start: start, End: end, Err: err}
	}

	out := normalize(cs, start, end)
	b.logger.WithFields(logrus.Fields{
		"from":     start,
		"to":       end,
		"received": len(cs),
		"kept":     len(out),
	}).Debug("fetched historical candles")
	return out, nil
}

// normalize keeps candles inside [start, end], sorts them by OpenTime and
// collapses duplicates, keeping the later row.
func normalize(cs []candle.Candle, start, end int64) []candle.Candle {
	out := make([]candle.Candle, 0, len(cs))
	for _, c := range cs {
		if c.OpenTime >= start && c.OpenTime <= end {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })

	n := 0
	for i := range out {
		if n > 0 && out[n-1].OpenTime == out[i].OpenTime {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}
