package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry          *prometheus.Registry
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	rateLimitRejected *prometheus.CounterVec
	bindingErrors     *prometheus.CounterVec
	operationsTotal   *prometheus.CounterVec
	outputBytes       *prometheus.HistogramVec
	infoFormats       *prometheus.CounterVec
	activePipelines   prometheus.Gauge
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagebinding_api_requests_total",
			Help: "Total HTTP requests handled by the API.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagebinding_api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagebinding_api_rate_limit_rejections_total",
			Help: "Total API requests rejected by rate limiting.",
		}, []string{"route"}),
		bindingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagebinding_errors_total",
			Help: "Binding error responses by kind and machine code.",
		}, []string{"kind", "code"}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagebinding_transform_operations_total",
			Help: "Transform operations issued to the engine or skipped as inapplicable.",
		}, []string{"result"}),
		outputBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "imagebinding_output_bytes",
			Help:    "Size of encoded output images.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"content_type"}),
		infoFormats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imagebinding_info_requests_total",
			Help: "Successful info responses by detected format.",
		}, []string{"format"}),
		activePipelines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "imagebinding_active_pipelines",
			Help: "Current number of requests holding an engine slot.",
		}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.rateLimitRejected,
		m.bindingErrors,
		m.operationsTotal,
		m.outputBytes,
		m.infoFormats,
		m.activePipelines,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// routeLabel keeps label cardinality bounded: every path other than the
// fixed ones is the transform route.
func routeLabel(path string) string {
	switch path {
	case "/info", "/healthz", "/metrics":
		return path
	default:
		return "/{transform}"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
