package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

type tradeMetrics struct {
	settlements *prometheus.CounterVec
	escrowMoves *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	tradeMetricsOnce sync.Once
	tradeRegistry    *tradeMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// TradeMetrics returns the lazily-initialised registry tracking marketplace
// and auction settlement activity.
func TradeMetrics() *tradeMetrics {
	tradeMetricsOnce.Do(func() {
		tradeRegistry = &tradeMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "trade",
				Name:      "settlements_total",
				Help:      "Count of settled trades segmented by path (buy, offer, auction).",
			}, []string{"path"}),
			escrowMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "trade",
				Name:      "escrow_moves_total",
				Help:      "Count of escrow movements segmented by direction (hold, refund, payout).",
			}, []string{"direction"}),
		}
		prometheus.MustRegister(tradeRegistry.settlements, tradeRegistry.escrowMoves)
	})
	return tradeRegistry
}

// RecordSettlement increments the settlement counter for the supplied path.
// Paths should be stable strings such as "buy", "offer" or "auction" so
// dashboards remain consistent.
func (m *tradeMetrics) RecordSettlement(path string) {
	if m == nil {
		return
	}
	if path = strings.TrimSpace(path); path == "" {
		path = "unknown"
	}
	m.settlements.WithLabelValues(path).Inc()
}

// RecordEscrowMove increments the escrow movement counter.
func (m *tradeMetrics) RecordEscrowMove(direction string) {
	if m == nil {
		return
	}
	if direction = strings.TrimSpace(direction); direction == "" {
		direction = "unknown"
	}
	m.escrowMoves.WithLabelValues(direction).Inc()
}
