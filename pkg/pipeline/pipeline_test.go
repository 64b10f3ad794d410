package pipeline

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/metrics"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// prices builds a price matrix; NaN marks a missing observation
func prices(t *testing.T, series map[string][]float64) *market.PriceMatrix {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := market.NewPriceMatrixBuilder()
	for ticker, values := range series {
		b.AddTicker(ticker)
		for i, v := range values {
			if math.IsNaN(v) {
				continue
			}
			require.NoError(t, b.Set(start.AddDate(0, 0, i), ticker, v))
		}
	}
	pm, err := b.Build()
	require.NoError(t, err)
	return pm
}

// fromReturns compounds a return series into prices starting at 100
func fromReturns(returns ...float64) []float64 {
	out := []float64{100}
	for _, r := range returns {
		out = append(out, out[len(out)-1]*(1+r))
	}
	return out
}

func newPipeline(t *testing.T, cfg Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, opts...)
	require.NoError(t, err)
	return p
}

func TestRun_IdenticalSeriesFormOneCommunity(t *testing.T) {
	series := []float64{100, 101, 99, 102, 103}
	pm := prices(t, map[string][]float64{"A": series, "B": series, "C": series})

	res, err := newPipeline(t, DefaultConfig()).Run(context.Background(), pm)
	require.NoError(t, err)

	v, err := res.Correlation.Get("A", "C")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	assert.Equal(t, 3, res.Graph.EdgeCount())
	assert.Equal(t, 1, res.Partition.NumCommunities())
	assert.Equal(t, []string{"A", "B", "C"}, res.Partition.Members(0))
	assert.NotEmpty(t, res.RunID)
}

func TestRun_TwoIndependentPairs(t *testing.T) {
	p1 := fromReturns(0.1, -0.1, 0.1, -0.1)
	p2 := fromReturns(0.1, 0.1, -0.1, -0.1)
	pm := prices(t, map[string][]float64{"A": p1, "B": p1, "C": p2, "D": p2})

	res, err := newPipeline(t, DefaultConfig()).Run(context.Background(), pm)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Graph.EdgeCount())
	assert.True(t, res.Graph.HasEdge("A", "B"))
	assert.True(t, res.Graph.HasEdge("C", "D"))

	require.Equal(t, 2, res.Partition.NumCommunities())
	assert.Equal(t, []string{"A", "B"}, res.Partition.Members(0))
	assert.Equal(t, []string{"C", "D"}, res.Partition.Members(1))
	assert.Equal(t, 2, res.Components.NumCommunities())
}

func TestRun_NoOverlapMeansNoEdge(t *testing.T) {
	nan := math.NaN()
	pm := prices(t, map[string][]float64{
		"A": {100, 101, 102, nan, nan, nan},
		"B": {nan, nan, nan, 50, 51, 49},
	})

	cfg := DefaultConfig()
	cfg.Network.Threshold = 0
	res, err := newPipeline(t, cfg).Run(context.Background(), pm)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Graph.EdgeCount())
	require.Len(t, res.UndefinedPairs, 1)
	assert.Equal(t, 2, res.Partition.NumCommunities(), "isolated vertices are singletons")
}

func TestNew_InvalidThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Threshold = 1.1

	p, err := New(cfg)
	assert.Nil(t, p)
	var cfgErr *validation.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "Threshold")
}

func TestNew_ReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Network.Threshold = -1
	k := 0
	cfg.Network.TopK = &k
	cfg.Correlation.MinOverlap = 1
	cfg.Window = -5

	_, err := New(cfg)
	var cfgErr *validation.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Errors, 4)
}

func TestRun_ExclusionsAreReported(t *testing.T) {
	nan := math.NaN()
	series := []float64{100, 101, 99, 102}
	pm := prices(t, map[string][]float64{
		"A":    series,
		"B":    series,
		"THIN": {nan, 10, nan, nan},
	})

	var buf bytes.Buffer
	logger := logging.NewJSONLogger(&buf, logging.DebugLevel)
	res, err := newPipeline(t, DefaultConfig(), WithLogger(logger)).Run(context.Background(), pm)
	require.NoError(t, err)

	require.Len(t, res.Exclusions, 1)
	assert.Equal(t, "THIN", res.Exclusions[0].Ticker)
	assert.Equal(t, []string{"A", "B"}, res.Graph.Vertices())
	assert.Contains(t, buf.String(), `"ticker":"THIN"`)
	assert.Contains(t, buf.String(), res.RunID)
}

func TestRun_NoUsableAssets(t *testing.T) {
	nan := math.NaN()
	pm := prices(t, map[string][]float64{"A": {100, nan, nan}, "B": {nan, nan, 5}})

	reg := metrics.NewRegistry()
	res, err := newPipeline(t, DefaultConfig(), WithMetrics(reg)).Run(context.Background(), pm)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, network.ErrEmptyGraph)
	assert.ErrorIs(t, err, market.ErrNoUsableAssets)
	var emptyErr *network.EmptyGraphError
	require.ErrorAs(t, err, &emptyErr)
	assert.Equal(t, "every asset was excluded", emptyErr.Reason)
	assert.Contains(t, err.Error(), StageReturns)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RunsTotal.WithLabelValues("failure")))
}

func TestRun_SignedModeExcludesNegativeEdges(t *testing.T) {
	up := fromReturns(0.1, -0.1, 0.1, -0.1)
	down := fromReturns(-0.1, 0.1, -0.1, 0.1)
	pm := prices(t, map[string][]float64{"A": up, "B": up, "D": down})

	cfg := DefaultConfig()
	cfg.Network.WeightMode = network.WeightSigned
	res, err := newPipeline(t, cfg).Run(context.Background(), pm)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Graph.EdgeCount())
	assert.Equal(t, 2, res.NegativeEdgesExcluded)
	assert.Equal(t, 1, res.DetectionGraph.EdgeCount())
	assert.Equal(t, res.Partition.NodeCommunity["A"], res.Partition.NodeCommunity["B"])
	assert.NotEqual(t, res.Partition.NodeCommunity["A"], res.Partition.NodeCommunity["D"])
}

func TestRun_Window(t *testing.T) {
	series := []float64{100, 101, 99, 102, 103, 101}
	pm := prices(t, map[string][]float64{"A": series, "B": series})

	cfg := DefaultConfig()
	cfg.Window = 3
	res, err := newPipeline(t, cfg).Run(context.Background(), pm)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Returns.Rows())
}

func TestRun_Cancelled(t *testing.T) {
	series := []float64{100, 101, 99}
	pm := prices(t, map[string][]float64{"A": series, "B": series})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPipeline(t, DefaultConfig()).Run(ctx, pm)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Metrics(t *testing.T) {
	series := []float64{100, 101, 99, 102, 103}
	pm := prices(t, map[string][]float64{"A": series, "B": series, "C": series})

	reg := metrics.NewRegistry()
	res, err := newPipeline(t, DefaultConfig(), WithMetrics(reg)).Run(context.Background(), pm)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.GraphVerticesTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.GraphEdgesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.CommunitiesTotal))
	assert.Equal(t, float64(res.Partition.Passes), testutil.ToFloat64(reg.LouvainPasses))

	for _, stage := range []string{StageReturns, StageCorrelation, StageNetwork, StageCommunity, StageAnalytics} {
		assert.Contains(t, res.StageDurations, stage)
	}
}

func TestRun_Deterministic(t *testing.T) {
	pm := prices(t, map[string][]float64{
		"A": fromReturns(0.02, -0.01, 0.03, 0.01, -0.02, 0.01),
		"B": fromReturns(0.01, -0.02, 0.02, 0.02, -0.01, 0.00),
		"C": fromReturns(-0.01, 0.02, -0.02, 0.01, 0.03, -0.01),
		"D": fromReturns(-0.02, 0.01, -0.03, 0.00, 0.02, -0.02),
		"E": fromReturns(0.00, 0.01, 0.01, -0.01, 0.00, 0.02),
	})

	cfg := DefaultConfig()
	cfg.Correlation.Workers = 4
	p := newPipeline(t, cfg)

	r1, err := p.Run(context.Background(), pm)
	require.NoError(t, err)
	r2, err := p.Run(context.Background(), pm)
	require.NoError(t, err)

	assert.Equal(t, r1.Graph.Edges(), r2.Graph.Edges())
	assert.Equal(t, r1.Partition.NodeCommunity, r2.Partition.NodeCommunity)
	assert.Equal(t, r1.Partition.Modularity, r2.Partition.Modularity)
	assert.NotEqual(t, r1.RunID, r2.RunID)
}
