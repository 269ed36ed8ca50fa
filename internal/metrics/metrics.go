package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters.
type Metrics struct {
	eventsIngested  prometheus.Counter
	dispatches      prometheus.Counter
	handlerFailures prometheus.Counter
	eventsRejected  prometheus.Counter
	reorgsRecorded  prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			eventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "chain_sentry_events_ingested_total",
				Help: "Total number of chain events ingested",
			}),
			dispatches: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "chain_sentry_dispatches_total",
				Help: "Total number of events dispatched to handlers",
			}),
			handlerFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "chain_sentry_handler_failures_total",
				Help: "Total number of handler or action failures",
			}),
			eventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "chain_sentry_events_rejected_total",
				Help: "Total number of events rejected as reorg-invalidated",
			}),
			reorgsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "chain_sentry_reorgs_recorded_total",
				Help: "Total number of chain reorganizations recorded",
			}),
		}
		prometheus.MustRegister(
			metrics.eventsIngested,
			metrics.dispatches,
			metrics.handlerFailures,
			metrics.eventsRejected,
			metrics.reorgsRecorded,
		)
	})
	return metrics
}

// EventsIngested increments the events ingested counter.
func (m *Metrics) EventsIngested() {
	if m != nil {
		m.eventsIngested.Inc()
	}
}

// Dispatches increments the dispatch counter.
func (m *Metrics) Dispatches() {
	if m != nil {
		m.dispatches.Inc()
	}
}

// HandlerFailures increments the handler failure counter.
func (m *Metrics) HandlerFailures() {
	if m != nil {
		m.handlerFailures.Inc()
	}
}

// EventsRejected increments the reorg-rejection counter.
func (m *Metrics) EventsRejected() {
	if m != nil {
		m.eventsRejected.Inc()
	}
}

// ReorgsRecorded increments the reorg counter.
func (m *Metrics) ReorgsRecorded() {
	if m != nil {
		m.reorgsRecorded.Inc()
	}
}

// Handler returns an HTTP handler for /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
