package fetch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector holds the Prometheus instruments for the fetch client.
// All record methods are safe to call on a nil collector.
type MetricsCollector struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
	rateLimitRemaining  *prometheus.GaugeVec
}

// NewMetricsCollector registers the instruments on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry registers the instruments on the given
// registerer. Tests pass a fresh registry to avoid duplicate registration.
func NewMetricsCollectorWithRegistry(reg prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(reg)

	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "humbldata_requests_total",
			Help: "Total number of upstream requests by provider, route and status.",
		}, []string{"provider", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "humbldata_request_duration_seconds",
			Help:    "Upstream request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "route"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "humbldata_cache_lookups_total",
			Help: "Cache lookups by outcome (local_hit, remote_hit, miss).",
		}, []string{"outcome"}),
		rateLimitRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "humbldata_rate_limit_rejections_total",
			Help: "Requests rejected because the rate bucket was exhausted.",
		}, []string{"provider", "route"}),
		rateLimitRemaining: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "humbldata_rate_limit_remaining",
			Help: "Remaining quota in the current rate window.",
		}, []string{"provider", "route"}),
	}
}

func (m *MetricsCollector) recordRequest(provider, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.requestsTotal.WithLabelValues(provider, route, status).Inc()
	m.requestDuration.WithLabelValues(provider, route).Observe(elapsed.Seconds())
}

func (m *MetricsCollector) recordCacheLookup(outcome string) {
	if m == nil {
		return
	}

	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) recordRateLimitRejection(provider, route string) {
	if m == nil {
		return
	}

	m.rateLimitRejections.WithLabelValues(provider, route).Inc()
}

func (m *MetricsCollector) recordRateLimitRemaining(provider, route string, remaining int64) {
	if m == nil {
		return
	}

	m.rateLimitRemaining.WithLabelValues(provider, route).Set(float64(remaining))
}
