package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RecordRun records a finished pipeline run with its duration
func (r *Registry) RecordRun(status string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(status).Inc()
	r.RunDuration.Observe(duration.Seconds())
}

// RecordStage records the duration of a single pipeline stage
func (r *Registry) RecordStage(stage string, duration time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordExclusions counts assets or pairs dropped for a reason
func (r *Registry) RecordExclusions(reason string, n int) {
	if n <= 0 {
		return
	}
	r.ExclusionsTotal.WithLabelValues(reason).Add(float64(n))
}

// UpdateDataMetrics updates asset and pair gauges
func (r *Registry) UpdateDataMetrics(inputAssets, usableAssets, returnRows, definedPairs, undefinedPairs int) {
	r.AssetsTotal.WithLabelValues("input").Set(float64(inputAssets))
	r.AssetsTotal.WithLabelValues("usable").Set(float64(usableAssets))
	r.AssetsTotal.WithLabelValues("excluded").Set(float64(inputAssets - usableAssets))
	r.ReturnRowsTotal.Set(float64(returnRows))
	r.PairsTotal.WithLabelValues("defined").Set(float64(definedPairs))
	r.PairsTotal.WithLabelValues("undefined").Set(float64(undefinedPairs))
}

// UpdateGraphMetrics updates graph shape gauges
func (r *Registry) UpdateGraphMetrics(vertices, edges, isolated, negativeEdges, components int, totalWeight float64) {
	r.GraphVerticesTotal.Set(float64(vertices))
	r.GraphEdgesTotal.Set(float64(edges))
	r.GraphIsolatedVertices.Set(float64(isolated))
	r.GraphNegativeEdgesTotal.Set(float64(negativeEdges))
	r.GraphComponentsTotal.Set(float64(components))
	r.GraphTotalWeight.Set(totalWeight)
}

// UpdateCommunityMetrics updates partition gauges
func (r *Registry) UpdateCommunityMetrics(communities, largest, passes int, modularity float64) {
	r.CommunitiesTotal.Set(float64(communities))
	r.LargestCommunitySize.Set(float64(largest))
	r.LouvainPasses.Set(float64(passes))
	r.Modularity.Set(modularity)
}

// WriteTextfile writes all metrics in the text exposition format,
// for pickup by a node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
