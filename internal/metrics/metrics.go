// Package metrics exposes Prometheus collectors for the cycle engine and
// the RPC surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "kixikila"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations   *prometheus.CounterVec
	prizesPaid   prometheus.Counter
	ledgerCalls  *prometheus.HistogramVec
	rpcDurations *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "operations_total",
			Help:      "Group cycle operations by operation and result.",
		}, []string{"operation", "result"}),
		prizesPaid: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "prizes_paid_total",
			Help:      "Sum of prize amounts paid out to draw winners.",
		}),
		ledgerCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "call_duration_seconds",
			Help:      "Latency of payment ledger calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call", "result"}),
		rpcDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "Duration of RPC and function calls by procedure and code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure", "code"}),
	}
}

// Operation counts one cycle operation outcome, e.g. ("draw", "ok").
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// PrizePaid adds a paid prize amount.
func (m *Metrics) PrizePaid(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.prizesPaid.Add(amount.InexactFloat64())
}

// LedgerCall records the latency of a ledger call.
func (m *Metrics) LedgerCall(call string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ledgerCalls.WithLabelValues(call, result).Observe(elapsed.Seconds())
}

// RPC records one handled request.
func (m *Metrics) RPC(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcDurations.WithLabelValues(procedure, code).Observe(elapsed.Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
