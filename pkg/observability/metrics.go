package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the config generator.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	TasksActive        prometheus.Gauge

	// Assembly metrics
	DocumentsWrittenTotal *prometheus.CounterVec
	SchemaViolationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confgen_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confgen_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confgen_generations_total",
				Help: "Total number of finished generation tasks",
			},
			[]string{"tenant", "status"},
		),
		GenerationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confgen_generation_duration_seconds",
				Help:    "Generation task duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"tenant"},
		),
		TasksActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "confgen_tasks_active",
				Help: "Number of generation tasks currently running",
			},
		),
		DocumentsWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confgen_documents_written_total",
				Help: "Total number of service config documents staged",
			},
			[]string{"tenant", "service"},
		),
		SchemaViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confgen_schema_violations_total",
				Help: "Total number of schema validation violations",
			},
			[]string{"tenant", "service"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GenerationsTotal,
		m.GenerationDuration,
		m.TasksActive,
		m.DocumentsWrittenTotal,
		m.SchemaViolationsTotal,
	)
	return m
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
