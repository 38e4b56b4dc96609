package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"pegvault/core/events"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry counting committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "pegvault",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Emit satisfies events.Emitter so the registry can sit in an emitter fanout.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(evt.EventType()).Inc()
}
