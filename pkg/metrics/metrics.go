package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the push service.
// Each instance owns its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	received       prometheus.Counter
	delivered      prometheus.Counter
	failed         *prometheus.CounterVec
	retried        prometheus.Counter
	exchanges      *prometheus.CounterVec
	exchangeTime   prometheus.Histogram
	tokenCacheHits prometheus.Counter
}

// New returns a Metrics collector with zeroed counters.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "push",
			Name:      "requests_received_total",
			Help:      "Notification requests accepted by the dispatcher.",
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "push",
			Name:      "delivered_total",
			Help:      "Notifications acknowledged by the push API.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "push",
			Name:      "failed_total",
			Help:      "Notifications that failed, by error kind.",
		}, []string{"kind"}),
		retried: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "push",
			Name:      "retried_total",
			Help:      "Booking alerts retried after a transport failure.",
		}),
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "push",
			Name:      "token_exchanges_total",
			Help:      "OAuth token exchanges, by outcome.",
		}, []string{"outcome"}),
		exchangeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "push",
			Name:      "token_exchange_seconds",
			Help:      "Latency of OAuth token exchanges.",
			Buckets:   prometheus.DefBuckets,
		}),
		tokenCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "push",
			Name:      "token_cache_hits_total",
			Help:      "Access tokens served from the in-memory cache.",
		}),
	}
	m.registry.MustRegister(
		m.received,
		m.delivered,
		m.failed,
		m.retried,
		m.exchanges,
		m.exchangeTime,
		m.tokenCacheHits,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) IncReceived()          { m.received.Inc() }
func (m *Metrics) IncDelivered()         { m.delivered.Inc() }
func (m *Metrics) IncFailed(kind string) { m.failed.WithLabelValues(kind).Inc() }
func (m *Metrics) IncRetried()           { m.retried.Inc() }
func (m *Metrics) IncTokenCacheHit()     { m.tokenCacheHits.Inc() }

// ObserveTokenExchange records one exchange and how long it took.
func (m *Metrics) ObserveTokenExchange(outcome string, took time.Duration) {
	m.exchanges.WithLabelValues(outcome).Inc()
	m.exchangeTime.Observe(took.Seconds())
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
