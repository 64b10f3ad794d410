package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for one pipeline instance.
// Each pipeline owns its registry; there is no process-wide default.
type Registry struct {
	// Pipeline Metrics
	RunsTotal     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	RunDuration   prometheus.Histogram

	// Data Metrics
	AssetsTotal     *prometheus.GaugeVec
	ReturnRowsTotal prometheus.Gauge
	PairsTotal      *prometheus.GaugeVec
	ExclusionsTotal *prometheus.CounterVec

	// Graph Metrics
	GraphVerticesTotal      prometheus.Gauge
	GraphEdgesTotal         prometheus.Gauge
	GraphIsolatedVertices   prometheus.Gauge
	GraphNegativeEdgesTotal prometheus.Gauge
	GraphTotalWeight        prometheus.Gauge
	GraphComponentsTotal    prometheus.Gauge

	// Community Metrics
	CommunitiesTotal     prometheus.Gauge
	Modularity           prometheus.Gauge
	LouvainPasses        prometheus.Gauge
	LargestCommunitySize prometheus.Gauge

	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	// Initialize all metrics
	r.initPipelineMetrics()
	r.initDataMetrics()
	r.initGraphMetrics()
	r.initCommunityMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
