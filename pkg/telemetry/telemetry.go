// Package telemetry wraps a matchcore.Exchange with Prometheus counters
// and gauges and a zap-backed matchcore.Logger, grounded on the
// reference engine's Prometheus registry wrapper. It is purely
// observational: nothing here can influence a matching decision, and
// an Exchange built without it behaves identically.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lxbook/matchcore/pkg/matchcore"
)

// Metrics holds a private Prometheus registry and the named
// instruments for one Exchange. A private registry (rather than the
// global default one) keeps multiple engines - each test, for
// instance - from colliding on metric names.
type Metrics struct {
	symbol   string
	registry *prometheus.Registry
	logger   *zap.Logger

	ordersSubmitted prometheus.Counter
	tradesExecuted  prometheus.Counter
	bookDepth       *prometheus.GaugeVec
	matchLatency    prometheus.Histogram
}

// New creates a Metrics instance for symbol, registering its
// instruments on a fresh registry. logger may be nil, in which case a
// no-op zap logger is used so this package never writes to stdout on
// its own.
func New(symbol string, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		symbol:   symbol,
		registry: registry,
		logger:   logger,
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "orders_submitted_total",
			Help:      "Total number of orders submitted to the engine.",
		}),
		tradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "matchcore",
			Name:      "trades_executed_total",
			Help:      "Total number of trades executed by the engine.",
		}),
		bookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "matchcore",
			Name:      "orderbook_depth",
			Help:      "Resting order count on one side of the book.",
		}, []string{"symbol", "side"}),
		matchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "matchcore",
			Name:      "matching_latency_seconds",
			Help:      "Wall-clock time spent inside Exchange.Submit.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(m.ordersSubmitted, m.tradesExecuted, m.bookDepth, m.matchLatency)
	return m
}

// Handler exposes the registry on the standard Prometheus text format,
// for mounting at e.g. /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Logger adapts the zap.Logger to matchcore.Logger, the minimal
// interface the core defines for its own defensive diagnostics. The
// core package never imports zap directly; this is the only bridge
// between the two.
func (m *Metrics) Logger() matchcore.Logger {
	return zapLogger{m.logger.Sugar()}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l zapLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

// RecordSubmit updates counters/histograms for one completed Submit
// call. Callers time the call themselves; this package has no
// knowledge of when a Submit starts.
func (m *Metrics) RecordSubmit(trades int, elapsed time.Duration) {
	m.ordersSubmitted.Inc()
	m.tradesExecuted.Add(float64(trades))
	m.matchLatency.Observe(elapsed.Seconds())
}

// ObserveDepth pushes a snapshot of book depth into the gauge. Callers
// typically do this after every Submit, or on a timer.
func (m *Metrics) ObserveDepth(bidLevels, askLevels []matchcore.LevelSnapshot) {
	bidCount := 0
	for _, l := range bidLevels {
		bidCount += l.OrderCount
	}
	askCount := 0
	for _, l := range askLevels {
		askCount += l.OrderCount
	}
	m.bookDepth.WithLabelValues(m.symbol, "buy").Set(float64(bidCount))
	m.bookDepth.WithLabelValues(m.symbol, "sell").Set(float64(askCount))
}

// SubmitHook returns a matchcore.SubmitHook that feeds RecordSubmit
// from the engine's own timing of the matching loop, wiring
// orders_submitted_total, trades_executed_total, and
// matching_latency_seconds to real Submit calls.
func (m *Metrics) SubmitHook() matchcore.SubmitHook {
	return m.RecordSubmit
}

// BookTopHook returns a matchcore.BookTopHook that refreshes the depth
// gauge whenever a side's best quote changes. bookFn is called lazily
// on each fire rather than the book being passed directly, since the
// hook is registered via a functional option before the Exchange (and
// therefore its book) exists; callers typically satisfy this with a
// pre-declared *Exchange variable captured by the closure.
func (m *Metrics) BookTopHook(bookFn func() *matchcore.OrderBook) matchcore.BookTopHook {
	return func(_ matchcore.Side, _ *matchcore.Order, _ bool) {
		bids, asks := bookFn().Depth(1 << 20)
		m.ObserveDepth(bids, asks)
	}
}
