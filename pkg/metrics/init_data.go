package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initDataMetrics() {
	r.AssetsTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corrnet_assets",
			Help: "Number of assets at each point of the last run",
		},
		[]string{"state"}, // input, usable, excluded
	)

	r.ReturnRowsTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "corrnet_return_rows",
			Help: "Number of rows in the returns matrix of the last run",
		},
	)

	r.PairsTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "corrnet_correlation_pairs",
			Help: "Number of asset pairs in the correlation matrix by definedness",
		},
		[]string{"state"}, // defined, undefined
	)

	r.ExclusionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "corrnet_exclusions_total",
			Help: "Total number of assets or pairs excluded, by reason",
		},
		[]string{"reason"},
	)
}
