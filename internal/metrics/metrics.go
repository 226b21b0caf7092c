// Package metrics exposes the Prometheus counters and histograms the
// runner updates each bar: bars processed, decisions by outcome, gate
// rejections by reason, and event-store append latency. The teacher's
// go.mod already carries prometheus/client_golang; this package is the
// first to wire it against a concrete registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric the runner touches, registered against
// a caller-supplied prometheus.Registerer so tests can use a throwaway
// registry instead of the global default.
type Registry struct {
	BarsProcessed       prometheus.Counter
	DecisionsByOutcome  *prometheus.CounterVec
	GateRejections      *prometheus.CounterVec
	EventAppendLatency  prometheus.Histogram
	TradesClosed        *prometheus.CounterVec
}

// New creates and registers every metric against reg.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "bars_processed_total",
			Help:      "Closed bars processed by the runner.",
		}),
		DecisionsByOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "decisions_total",
			Help:      "Strategy selector decisions by outcome (TRADE/NO_TRADE).",
		}, []string{"outcome"}),
		GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "gate_rejections_total",
			Help:      "Order intent rejections by constitutional filter gate reason.",
		}, []string{"reason"}),
		EventAppendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "trader",
			Name:      "event_append_seconds",
			Help:      "Latency of appending one event to the event store.",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trader",
			Name:      "trades_closed_total",
			Help:      "Closed trades by attribution classification.",
		}, []string{"classification"}),
	}

	reg.MustRegister(r.BarsProcessed, r.DecisionsByOutcome, r.GateRejections, r.EventAppendLatency, r.TradesClosed)
	return r
}
