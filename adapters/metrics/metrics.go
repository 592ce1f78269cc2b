// Package metrics provides Prometheus metrics collection for the SIA service.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/lsst-sqre/vo-siav2/adapters/exportconfig"
	"github.com/lsst-sqre/vo-siav2/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sia"

// Collector holds all Prometheus metrics for the SIA service.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Query metrics
	QueriesTotal  *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	FaultsTotal   *prometheus.CounterVec

	// Backend metrics
	EngineCreations    *prometheus.CounterVec
	AvailabilityChecks *prometheus.CounterVec
	ExportConfigLoads  *prometheus.CounterVec
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "route", "status"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of SIA queries by collection, backend and outcome",
			},
			[]string{"collection", "backend", "outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "SIA query duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"collection", "backend"},
		),
		FaultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "faults_total",
				Help:      "Total number of faults returned to clients",
			},
			[]string{"kind"},
		),
		EngineCreations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_creations_total",
				Help:      "Total number of query engine creations",
			},
			[]string{"backend", "result"},
		),
		AvailabilityChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "availability_checks_total",
				Help:      "Total number of availability checks",
			},
			[]string{"backend", "available"},
		),
		ExportConfigLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_config_loads_total",
				Help:      "Total number of export config loads by source",
			},
			[]string{"source", "result"},
		),
	}
}

// RecordQuery implements ports.QueryMetrics.
func (c *Collector) RecordQuery(collection, backend, outcome string, d time.Duration) {
	c.QueriesTotal.WithLabelValues(collection, backend, outcome).Inc()
	c.QueryDuration.WithLabelValues(collection, backend).Observe(d.Seconds())
}

// RecordEngineCreation implements ports.QueryMetrics.
func (c *Collector) RecordEngineCreation(backend, result string) {
	c.EngineCreations.WithLabelValues(backend, result).Inc()
}

// RecordAvailabilityCheck implements ports.QueryMetrics.
func (c *Collector) RecordAvailabilityCheck(backend string, available bool) {
	c.AvailabilityChecks.WithLabelValues(backend, strconv.FormatBool(available)).Inc()
}

// RecordExportConfigLoad implements exportconfig.LoadRecorder.
func (c *Collector) RecordExportConfigLoad(source, result string) {
	c.ExportConfigLoads.WithLabelValues(source, result).Inc()
}

// RecordFault counts a fault by its kind name.
func (c *Collector) RecordFault(kind string) {
	c.FaultsTotal.WithLabelValues(kind).Inc()
}

// NormalizePath reduces cardinality by normalizing path patterns.
// e.g., /api/sia/dp02/query -> /api/sia/{collection}/query
func NormalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if n := len(parts); n >= 2 {
		switch parts[n-1] {
		case "query", "availability", "capabilities":
			parts[n-2] = "{collection}"
			return "/" + strings.Join(parts, "/")
		}
	}
	if len(path) > 50 {
		return path[:50] + "..."
	}
	return path
}

var (
	_ ports.QueryMetrics        = (*Collector)(nil)
	_ exportconfig.LoadRecorder = (*Collector)(nil)
)
