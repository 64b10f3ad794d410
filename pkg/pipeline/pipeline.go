package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-corrnet/pkg/algorithms"
	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/logging"
	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/metrics"
	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

// Stage names used in logs, metrics and Result.StageDurations
const (
	StageReturns     = "returns"
	StageCorrelation = "correlation"
	StageNetwork     = "network"
	StageCommunity   = "community"
	StageAnalytics   = "analytics"
)

// Exclusion reasons recorded in metrics
const (
	ReasonInsufficientData     = "insufficient_data"
	ReasonUndefinedCorrelation = "undefined_correlation"
	ReasonNegativeEdge         = "negative_edge"
)

// Result is everything one run produces. It is complete or not returned at all.
type Result struct {
	RunID     string
	StartedAt time.Time
	Config    Config

	Returns     *market.ReturnsMatrix
	Correlation *correlation.Matrix
	// Graph is the thresholded network; in signed mode it can carry negative edges
	Graph *network.Graph
	// DetectionGraph is what community detection ran on: Graph without negative edges
	DetectionGraph *network.Graph
	Partition      *algorithms.CommunityDetectionResult

	Exclusions            []*market.InsufficientDataError
	UndefinedPairs        []correlation.UndefinedPair
	NegativeEdgesExcluded int

	Components        *algorithms.CommunityDetectionResult
	AverageClustering float64
	PageRank          *algorithms.PageRankResult

	StageDurations map[string]time.Duration
	Duration       time.Duration
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics records run metrics in reg
func WithMetrics(reg *metrics.Registry) Option {
	return func(p *Pipeline) {
		p.metrics = reg
	}
}

// Pipeline runs prices → returns → correlation → graph → partition.
// Stages run strictly in sequence; a Pipeline holds no state between runs.
type Pipeline struct {
	cfg      Config
	returns  *market.ReturnsComputer
	engine   *correlation.Engine
	builder  *network.Builder
	detector *algorithms.Louvain

	logger  logging.Logger
	metrics *metrics.Registry
}

// New validates cfg and builds every stage. Configuration errors surface
// here as *validation.ConfigurationError, before any data is read.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.returns, err = market.NewReturnsComputer(cfg.Returns); err != nil {
		return nil, err
	}
	if p.engine, err = correlation.NewEngine(cfg.Correlation); err != nil {
		return nil, err
	}
	if p.builder, err = network.NewBuilder(cfg.Network); err != nil {
		return nil, err
	}
	if p.detector, err = algorithms.NewLouvain(cfg.Community); err != nil {
		return nil, err
	}
	return p, nil
}

// Config returns the validated configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Run executes every stage on pm. Per-asset and per-pair problems are
// recorded in the result; anything else aborts the run with an error that
// names the failing stage and wraps the cause.
func (p *Pipeline) Run(ctx context.Context, pm *market.PriceMatrix) (*Result, error) {
	res := &Result{
		RunID:          uuid.NewString(),
		StartedAt:      time.Now(),
		Config:         p.cfg,
		StageDurations: make(map[string]time.Duration),
	}
	log := p.logger.With(logging.RunID(res.RunID), logging.Component("pipeline"))

	inputAssets := 0
	if pm != nil {
		inputAssets = pm.NumAssets()
		log.Info("run started",
			logging.Int("assets", inputAssets),
			logging.Int("timestamps", pm.Rows()))
	}

	if err := p.run(ctx, log, pm, res); err != nil {
		res.Duration = time.Since(res.StartedAt)
		log.Error("run failed", logging.Error(err), logging.Duration("duration", res.Duration))
		if p.metrics != nil {
			p.metrics.RecordRun("failure", res.Duration)
		}
		return nil, err
	}

	res.Duration = time.Since(res.StartedAt)
	log.Info("run completed",
		logging.Int("vertices", res.Graph.NumVertices()),
		logging.Int("edges", res.Graph.EdgeCount()),
		logging.Int("communities", res.Partition.NumCommunities()),
		logging.Float64("modularity", res.Partition.Modularity),
		logging.Duration("duration", res.Duration))

	if p.metrics != nil {
		p.recordMetrics(inputAssets, res)
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log logging.Logger, pm *market.PriceMatrix, res *Result) error {
	// Returns
	if err := p.stage(ctx, log, res, StageReturns, func() error {
		rm, excluded, err := p.returns.Compute(pm)
		res.Exclusions = excluded
		for _, e := range excluded {
			log.Warn("asset excluded",
				logging.Ticker(e.Ticker),
				logging.Int("valid_prices", e.ValidPrices),
				logging.Error(e))
		}
		if errors.Is(err, market.ErrNoUsableAssets) {
			// nothing would reach the network builder
			return fmt.Errorf("%w: %w", &network.EmptyGraphError{Reason: "every asset was excluded"}, err)
		}
		if err != nil {
			return err
		}
		res.Returns = rm.Tail(p.cfg.Window)
		return nil
	}); err != nil {
		return err
	}

	// Correlation
	if err := p.stage(ctx, log, res, StageCorrelation, func() error {
		cm, err := p.engine.Compute(res.Returns)
		if err != nil {
			return err
		}
		res.Correlation = cm
		res.UndefinedPairs = cm.UndefinedPairs()
		if n := len(res.UndefinedPairs); n > 0 {
			log.Warn("undefined correlations", logging.Count(n))
		}
		return nil
	}); err != nil {
		return err
	}

	// Network
	if err := p.stage(ctx, log, res, StageNetwork, func() error {
		g, err := p.builder.Build(res.Correlation)
		if err != nil {
			return err
		}
		res.Graph = g
		res.DetectionGraph, res.NegativeEdgesExcluded = g.NonNegative()
		if res.NegativeEdgesExcluded > 0 {
			log.Warn("negative edges excluded from community detection",
				logging.Count(res.NegativeEdgesExcluded))
		}
		return nil
	}); err != nil {
		return err
	}

	// Community
	if err := p.stage(ctx, log, res, StageCommunity, func() error {
		partition, err := p.detector.Detect(res.DetectionGraph)
		if err != nil {
			return err
		}
		res.Partition = partition
		return nil
	}); err != nil {
		return err
	}

	// Analytics
	return p.stage(ctx, log, res, StageAnalytics, func() error {
		res.Components = algorithms.ConnectedComponents(res.Graph)
		res.AverageClustering = algorithms.AverageClusteringCoefficient(res.Graph)
		pr, err := algorithms.PageRank(res.Graph, p.cfg.PageRank)
		if err != nil {
			return err
		}
		res.PageRank = pr
		return nil
	})
}

// stage times fn, honours cancellation between stages and wraps failures
func (p *Pipeline) stage(ctx context.Context, log logging.Logger, res *Result, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}

	timer := logging.StartTimer(log, name, logging.Stage(name))
	err := fn()
	var d time.Duration
	if err != nil {
		d = timer.EndError(err)
	} else {
		d = timer.End()
	}

	res.StageDurations[name] = d
	if p.metrics != nil {
		p.metrics.RecordStage(name, d)
	}
	if err != nil {
		return fmt.Errorf("%s stage: %w", name, err)
	}
	return nil
}

func (p *Pipeline) recordMetrics(inputAssets int, res *Result) {
	p.metrics.RecordRun("success", res.Duration)
	p.metrics.RecordExclusions(ReasonInsufficientData, len(res.Exclusions))
	p.metrics.RecordExclusions(ReasonUndefinedCorrelation, len(res.UndefinedPairs))
	p.metrics.RecordExclusions(ReasonNegativeEdge, res.NegativeEdgesExcluded)
	p.metrics.UpdateDataMetrics(inputAssets, res.Returns.NumAssets(), res.Returns.Rows(),
		res.Correlation.DefinedPairs(), len(res.UndefinedPairs))
	p.metrics.UpdateGraphMetrics(res.Graph.NumVertices(), res.Graph.EdgeCount(), len(res.Graph.Isolated()),
		res.Graph.NegativeEdgeCount(), res.Components.NumCommunities(), res.Graph.TotalWeight())
	p.metrics.UpdateCommunityMetrics(res.Partition.NumCommunities(), res.Partition.LargestCommunity(),
		res.Partition.Passes, res.Partition.Modularity)
}
