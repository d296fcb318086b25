package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for work item invocations
type PrometheusMetrics struct {
	registry *prometheus.Registry

	invocationsTotal   *prometheus.CounterVec
	invocationErrors   *prometheus.CounterVec
	workItemsTotal     *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	responseBytes      *prometheus.HistogramVec

	activeInvocations prometheus.Gauge
	uptime            prometheus.GaugeFunc
}

// Default histogram buckets for invocation duration (in milliseconds)
var defaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

var (
	promMu      sync.RWMutex
	promMetrics *PrometheusMetrics
	startTime   = time.Now()
)

// InitPrometheus initializes the Prometheus metrics subsystem. Calling it
// again replaces the registry.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		invocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of job-template invocations by HTTP method and response status class",
			},
			[]string{"method", "status_class"},
		),

		invocationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocation_errors_total",
				Help:      "Total number of invocations that failed before producing a result",
			},
			[]string{"kind"},
		),

		workItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "work_items_total",
				Help:      "Total number of work items by outcome",
			},
			[]string{"outcome"},
		),

		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_milliseconds",
				Help:      "Duration of job-template invocations in milliseconds",
				Buckets:   buckets,
			},
			[]string{"method", "status_class"},
		),

		responseBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "response_body_bytes",
				Help:      "Size of job-template response bodies",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"method"},
		),

		activeInvocations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_invocations",
				Help:      "Number of invocations currently waiting on the remote platform",
			},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since the process started",
		},
		func() float64 { return time.Since(startTime).Seconds() },
	)

	registry.MustRegister(
		pm.invocationsTotal,
		pm.invocationErrors,
		pm.workItemsTotal,
		pm.invocationDuration,
		pm.responseBytes,
		pm.activeInvocations,
		pm.uptime,
	)

	promMu.Lock()
	promMetrics = pm
	promMu.Unlock()
}

func current() *PrometheusMetrics {
	promMu.RLock()
	defer promMu.RUnlock()
	return promMetrics
}

// StatusClass buckets an HTTP status code as "2xx", "4xx", ...
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// RecordInvocation records a completed HTTP exchange.
func RecordInvocation(method string, statusCode int, durationMs int64, responseBytes int) {
	pm := current()
	if pm == nil {
		return
	}
	class := StatusClass(statusCode)
	pm.invocationsTotal.WithLabelValues(method, class).Inc()
	pm.invocationDuration.WithLabelValues(method, class).Observe(float64(durationMs))
	pm.responseBytes.WithLabelValues(method).Observe(float64(responseBytes))
}

// RecordInvocationError records an invocation that ended in an error.
func RecordInvocationError(kind string) {
	pm := current()
	if pm == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	pm.invocationErrors.WithLabelValues(kind).Inc()
}

// RecordWorkItem records the outcome of a work item: completed, failed or aborted.
func RecordWorkItem(outcome string) {
	pm := current()
	if pm == nil {
		return
	}
	pm.workItemsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveInvocations increments the in-flight gauge
func IncActiveInvocations() {
	if pm := current(); pm != nil {
		pm.activeInvocations.Inc()
	}
}

// DecActiveInvocations decrements the in-flight gauge
func DecActiveInvocations() {
	if pm := current(); pm != nil {
		pm.activeInvocations.Dec()
	}
}

// PrometheusHandler returns the HTTP handler for /metrics
func PrometheusHandler() http.Handler {
	pm := current()
	if pm == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors)
func PrometheusRegistry() *prometheus.Registry {
	pm := current()
	if pm == nil {
		return nil
	}
	return pm.registry
}
