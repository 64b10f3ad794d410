package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initCommunityMetrics() {
	r.CommunitiesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_communities",
			Help: "Number of communities in the final partition",
		},
	)

	r.Modularity = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_modularity",
			Help: "Modularity of the final partition",
		},
	)

	r.LouvainPasses = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_louvain_passes",
			Help: "Number of local-move/aggregation passes performed",
		},
	)

	r.LargestCommunitySize = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_largest_community_size",
			Help: "Number of vertices in the largest community",
		},
	)
}
