package middleware

import (
	"net/http"
	"strconv"

	"github.com/advdv/bdispatch"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures [NewMetrics].
type MetricsConfig struct {
	// Namespace defaults to "bdispatch".
	Namespace string
	Subsystem string
	// Buckets of the duration histogram, defaults to prometheus.DefBuckets.
	Buckets []float64
	// Registerer defaults to prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// Metrics records dispatcher results as Prometheus metrics.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	upgrades *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "bdispatch"
	}

	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}

	if cfg.Registerer == nil {
		cfg.Registerer = prometheus.DefaultRegisterer
	}

	factory := promauto.With(cfg.Registerer)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "requests_total",
			Help:      "Dispatched requests by route, status and outcome.",
		}, []string{"method", "route", "status", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Time from receiving a request until it was finalized.",
			Buckets:   cfg.Buckets,
		}, []string{"method", "route"}),
		upgrades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "upgrades_total",
			Help:      "Connections handed off to another protocol.",
		}, []string{"protocol"}),
	}
}

// Observe implements [bdispatch.Observer]. Requests that matched no route are recorded with an empty
// route label so unknown paths cannot grow the label set.
func (m *Metrics) Observe(r *http.Request, res bdispatch.Result) {
	route := ""
	if res.Route.Index >= 0 {
		route = res.Route.Pattern
	}

	method := r.Method
	if !knownMethod(method) {
		method = "other"
	}

	m.requests.WithLabelValues(method, route, strconv.Itoa(res.Status), res.Outcome.String()).Inc()
	m.duration.WithLabelValues(method, route).Observe(res.Duration.Seconds())

	if res.State == bdispatch.StateUpgraded {
		m.upgrades.WithLabelValues(res.Protocol).Inc()
	}
}

func knownMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
