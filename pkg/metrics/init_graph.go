package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initGraphMetrics() {
	r.GraphVerticesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_graph_vertices",
			Help: "Number of vertices in the correlation graph",
		},
	)

	r.GraphEdgesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_graph_edges",
			Help: "Number of edges surviving the threshold policy",
		},
	)

	r.GraphIsolatedVertices = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_graph_isolated_vertices",
			Help: "Number of vertices without any edge",
		},
	)

	r.GraphNegativeEdgesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_graph_negative_edges",
			Help: "Number of negative-weight edges withheld from community detection",
		},
	)

	r.GraphTotalWeight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_graph_total_weight",
			Help: "Sum of edge weights in the correlation graph",
		},
	)

	r.GraphComponentsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_graph_components",
			Help: "Number of connected components in the correlation graph",
		},
	)
}
