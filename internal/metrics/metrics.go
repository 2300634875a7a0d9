// Package metrics exports prometheus collectors for engine operations,
// smart code governance and the HTTP adapter.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hera-erp/hera/internal/model"
)

// Metrics owns a private registry so several instances can coexist in
// one process (tests, embedded engines).
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	validations       *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers every collector under namespace.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_operations_total",
				Help:      "Total number of engine calls by store, operation, status and error kind",
			},
			[]string{"store", "operation", "status", "kind"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "engine_operation_duration_seconds",
				Help:      "Duration of engine calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"store", "operation"},
		),
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "smartcode_validations_total",
				Help:      "Total number of smart code validations by level and outcome",
			},
			[]string{"level", "result"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "smartcode_cache_lookups_total",
				Help:      "Total number of smart code cache lookups by result",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOperation records one engine call.
func (m *Metrics) ObserveOperation(store, operation, status string, kind model.ErrorKind, d time.Duration) {
	k := string(kind)
	if k == "" {
		k = "none"
	}
	m.operations.WithLabelValues(store, operation, status, k).Inc()
	m.operationDuration.WithLabelValues(store, operation).Observe(d.Seconds())
}

// RecordValidation records one governor level outcome.
func (m *Metrics) RecordValidation(level string, valid bool) {
	result := "pass"
	if !valid {
		result = "fail"
	}
	m.validations.WithLabelValues(level, result).Inc()
}

// RecordCacheLookup records a governor cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency. The route pattern is
// used as the path label to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.httpRequests.WithLabelValues(method, path, status).Inc()
			m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
