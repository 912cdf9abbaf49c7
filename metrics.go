package uxios

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the dispatch pipeline and
// the abort controller. It is safe for concurrent use and every Record
// method is a no-op on a nil collector.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal     *prometheus.CounterVec
	rateLimitedTotal *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	abortsTotal     *prometheus.CounterVec
	heartbeatTokens prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uxios_requests_total",
				Help: "Total number of settled requests",
			},
			[]string{"method", "status_code", "scheme"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "uxios_request_duration_seconds",
				Help:    "Duration of requests from dispatch to settlement in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "scheme"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "uxios_requests_in_flight",
				Help: "Number of requests currently in flight",
			},
			[]string{"method", "scheme"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uxios_retries_total",
				Help: "Total number of retry attempts made by the retry interceptor",
			},
			[]string{"method", "scheme", "attempt"},
		),
		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uxios_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"scheme"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uxios_errors_total",
				Help: "Total number of rejected requests by error type",
			},
			[]string{"type", "family", "method", "scheme"},
		),
		abortsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uxios_aborts_total",
				Help: "Total number of tasks aborted by the abort controller",
			},
			[]string{"reason"},
		),
		heartbeatTokens: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "uxios_heartbeat_tokens",
				Help: "Number of abort tokens checked by the last heartbeat",
			},
		),
	}
	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, scheme string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, scheme).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, scheme).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, scheme string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, scheme).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, scheme string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, scheme).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, scheme string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, scheme, strconv.Itoa(attempt)).Inc()
}

// RecordRateLimited increments the rate limiter rejection counter.
func (mc *MetricsCollector) RecordRateLimited(scheme string) {
	if mc == nil {
		return
	}

	mc.rateLimitedTotal.WithLabelValues(scheme).Inc()
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType ErrorType, method, scheme string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(string(errorType), string(errorType.Family()), method, scheme).Inc()
}

// RecordAbort increments the abort counter.
func (mc *MetricsCollector) RecordAbort(reason string) {
	if mc == nil {
		return
	}

	mc.abortsTotal.WithLabelValues(reason).Inc()
}

// RecordHeartbeat sets the number of tokens seen by a heartbeat.
func (mc *MetricsCollector) RecordHeartbeat(tokens int) {
	if mc == nil {
		return
	}

	mc.heartbeatTokens.Set(float64(tokens))
}

// GetRegistry exposes the underlying prometheus registry. It is nil when the
// collector was built on a Registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}
