package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "candlefeed"

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "frames_total",
		Help:      "Inbound streaming frames by decode result",
	}, []string{"exchange", "pair", "interval", "kind"})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "reconnects_total",
		Help:      "Streaming sessions that ended in a transport error",
	}, []string{"exchange", "pair", "interval"})

	supervisorState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "stream",
		Name:      "state",
		Help:      "Connection supervisor state (0 disconnected, 1 connecting, 2 subscribing, 3 streaming, 4 cancelled)",
	}, []string{"exchange", "pair", "interval"})

	gapsDetectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "gaps_detected_total",
		Help:      "Live candles that arrived more than one interval after the last stored candle",
	}, []string{"exchange", "pair", "interval"})

	gapRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "gap_repairs_total",
		Help:      "Gap repair backfills by result",
	}, []string{"exchange", "pair", "interval", "result"})

	backfillDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "backfill_duration_seconds",
		Help:      "Historical request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"exchange", "pair", "interval"})

	storeCandles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "feed",
		Name:      "store_candles",
		Help:      "Candles currently held in the store",
	}, []string{"exchange", "pair", "interval"})
)

// feedMetrics holds the collectors bound to one exchange/pair/interval.
type feedMetrics struct {
	frames           map[string]prometheus.Counter
	reconnects       prometheus.Counter
	state            prometheus.Gauge
	gapsDetected     prometheus.Counter
	gapRepairsOK     prometheus.Counter
	gapRepairsFailed prometheus.Counter
	backfillDuration prometheus.Observer
	storeCandles     prometheus.Gauge
}

func newFeedMetrics(exchange, pair, interval string) *feedMetrics {
	return &feedMetrics{
		frames: map[string]prometheus.Counter{
			"candles":   framesTotal.WithLabelValues(exchange, pair, interval, "candles"),
			"ignorable": framesTotal.WithLabelValues(exchange, pair, interval, "ignorable"),
			"malformed": framesTotal.WithLabelValues(exchange, pair, interval, "malformed"),
		},
		reconnects:       reconnectsTotal.WithLabelValues(exchange, pair, interval),
		state:            supervisorState.WithLabelValues(exchange, pair, interval),
		gapsDetected:     gapsDetectedTotal.WithLabelValues(exchange, pair, interval),
		gapRepairsOK:     gapRepairsTotal.WithLabelValues(exchange, pair, interval, "ok"),
		gapRepairsFailed: gapRepairsTotal.WithLabelValues(exchange, pair, interval, "error"),
		backfillDuration: backfillDuration.WithLabelValues(exchange, pair, interval),
		storeCandles:     storeCandles.WithLabelValues(exchange, pair, interval),
	}
}
