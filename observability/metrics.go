package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	nativecommon "pegvault/native/common"
)

// LedgerMetrics tracks engine operations served by the daemon.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	throttles  *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger returns the lazily-initialised ledger metrics registered with the
// default Prometheus registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "ledger",
				Name:      "failures_total",
				Help:      "Failed ledger operations segmented by operation and error kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "pegvault",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "ledger",
				Name:      "throttles_total",
				Help:      "Requests rejected before reaching the ledger.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.failures,
			ledgerRegistry.latency,
			ledgerRegistry.throttles,
		)
	})
	return ledgerRegistry
}

// Observe records one operation. err is classified by its ledger error kind.
func (m *LedgerMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(operation, nativecommon.Classify(err).String()).Inc()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordThrottle counts a request rejected for reason, e.g. "rate_limit" or
// "unauthenticated".
func (m *LedgerMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
