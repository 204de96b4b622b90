// Package metrics exposes Prometheus instruments for the lifecycle service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for transition attempts.
const (
	OutcomeSuccess           = "success"
	OutcomeValidation        = "validation_error"
	OutcomeNotFound          = "not_found"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeConcurrency       = "concurrency_conflict"
	OutcomeError             = "error"
)

// Lifecycle holds the instruments. Create one per process with New.
type Lifecycle struct {
	gatherer prometheus.Gatherer

	transitionsTotal    *prometheus.CounterVec
	transitionDuration  *prometheus.HistogramVec
	notificationsFailed *prometheus.CounterVec
	lockWait            *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the instruments on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Lifecycle {
	m := &Lifecycle{
		gatherer: reg,
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_transitions_total",
				Help: "Status transition attempts by entity type, target status and outcome",
			},
			[]string{"entity_type", "to_status", "outcome"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lifecycle_transition_duration_seconds",
				Help:    "Time spent applying a status transition, lock wait included",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"entity_type"},
		),
		notificationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lifecycle_notifications_failed_total",
				Help: "Post-commit notifications that could not be dispatched",
			},
			[]string{"entity_type"},
		),
		lockWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lifecycle_lock_wait_seconds",
				Help:    "Time spent waiting for the per-entity lock",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0},
			},
			[]string{"entity_type"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	reg.MustRegister(
		m.transitionsTotal,
		m.transitionDuration,
		m.notificationsFailed,
		m.lockWait,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// ObserveTransition records one transition attempt.
func (m *Lifecycle) ObserveTransition(entityType, toStatus, outcome string, took time.Duration) {
	m.transitionsTotal.WithLabelValues(entityType, toStatus, outcome).Inc()
	m.transitionDuration.WithLabelValues(entityType).Observe(took.Seconds())
}

// ObserveLockWait records how long acquiring the entity lock took.
func (m *Lifecycle) ObserveLockWait(entityType string, took time.Duration) {
	m.lockWait.WithLabelValues(entityType).Observe(took.Seconds())
}

// NotificationFailed counts a notification that was dropped.
func (m *Lifecycle) NotificationFailed(entityType string) {
	m.notificationsFailed.WithLabelValues(entityType).Inc()
}

// GinMiddleware records request counts and latency keyed by route template.
func (m *Lifecycle) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Lifecycle) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
