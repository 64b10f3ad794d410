package network

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-corrnet/pkg/correlation"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// WeightMode selects how a correlation becomes an edge weight
type WeightMode string

const (
	// WeightAbsolute uses |ρ|; every weight is non-negative
	WeightAbsolute WeightMode = "absolute"
	// WeightSigned uses ρ. Negative edges stay in the graph but must be
	// removed with Graph.NonNegative before community detection.
	WeightSigned WeightMode = "signed"
)

// TopKScope selects how top-K pruning ranks edges
type TopKScope string

const (
	// TopKGlobal keeps the K strongest edges of the whole graph
	TopKGlobal TopKScope = "global"
	// TopKPerVertex keeps an edge if it is among the K strongest edges of either endpoint
	TopKPerVertex TopKScope = "per_vertex"
)

// Policy controls which correlations become edges
type Policy struct {
	// Threshold is the minimum |ρ| for an edge, in [0, 1]
	Threshold  float64
	WeightMode WeightMode
	// TopK disables pruning when nil
	TopK      *int
	TopKScope TopKScope
}

// DefaultPolicy returns τ = 0.5, absolute weights and no pruning
func DefaultPolicy() Policy {
	return Policy{
		Threshold:  0.5,
		WeightMode: WeightAbsolute,
		TopKScope:  TopKGlobal,
	}
}

// Validate checks the policy
func (p Policy) Validate() error {
	return validation.NewConfigValidator("Policy").
		RangeFloat("Threshold", p.Threshold, 0, 1).
		OneOf("WeightMode", string(p.WeightMode), []string{string(WeightAbsolute), string(WeightSigned)}).
		OneOf("TopKScope", string(p.TopKScope), []string{string(TopKGlobal), string(TopKPerVertex)}).
		When(p.TopK != nil, func(cv *validation.ConfigValidator) {
			cv.Positive("TopK", *p.TopK)
		}).
		Validate()
}

// Builder turns a correlation matrix into a graph
type Builder struct {
	policy Policy
}

// NewBuilder validates the policy and creates a builder.
// An invalid policy is rejected here, before any matrix is read.
func NewBuilder(policy Policy) (*Builder, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.TopK != nil {
		k := *policy.TopK
		policy.TopK = &k
	}
	return &Builder{policy: policy}, nil
}

// Policy returns the builder's policy
func (b *Builder) Policy() Policy {
	return b.policy
}

// Build creates the graph. Every asset of the matrix becomes a vertex; an edge
// joins two assets when their correlation is defined and |ρ| >= Threshold.
// Zero edges is a valid result; zero vertices fails with *EmptyGraphError.
func (b *Builder) Build(cm *correlation.Matrix) (*Graph, error) {
	if cm == nil || cm.Size() == 0 {
		return nil, &EmptyGraphError{Reason: "correlation matrix has no assets"}
	}

	tickers := cm.Tickers()
	var edges []Edge
	for i := 0; i < len(tickers); i++ {
		for j := i + 1; j < len(tickers); j++ {
			rho, ok := cm.At(i, j)
			if !ok || math.Abs(rho) < b.policy.Threshold {
				continue
			}
			edges = append(edges, Edge{
				Source:      tickers[i],
				Target:      tickers[j],
				Weight:      b.weight(rho),
				Correlation: rho,
			})
		}
	}

	if b.policy.TopK != nil {
		edges = b.prune(edges, *b.policy.TopK)
	}

	return NewGraph(tickers, edges)
}

func (b *Builder) weight(rho float64) float64 {
	if b.policy.WeightMode == WeightSigned {
		return rho
	}
	return math.Abs(rho)
}

// stronger orders edges by |weight| descending, then by (Source, Target)
func stronger(a, b Edge) bool {
	wa, wb := math.Abs(a.Weight), math.Abs(b.Weight)
	if wa != wb {
		return wa > wb
	}
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	return a.Target < b.Target
}

func (b *Builder) prune(edges []Edge, k int) []Edge {
	if b.policy.TopKScope == TopKPerVertex {
		return prunePerVertex(edges, k)
	}
	if len(edges) <= k {
		return edges
	}
	sort.Slice(edges, func(i, j int) bool { return stronger(edges[i], edges[j]) })
	return edges[:k]
}

func prunePerVertex(edges []Edge, k int) []Edge {
	incident := make(map[string][]int)
	for idx, e := range edges {
		incident[e.Source] = append(incident[e.Source], idx)
		incident[e.Target] = append(incident[e.Target], idx)
	}

	keep := make([]bool, len(edges))
	for _, list := range incident {
		sort.Slice(list, func(i, j int) bool { return stronger(edges[list[i]], edges[list[j]]) })
		if len(list) > k {
			list = list[:k]
		}
		for _, idx := range list {
			keep[idx] = true
		}
	}

	out := edges[:0:0]
	for idx, e := range edges {
		if keep[idx] {
			out = append(out, e)
		}
	}
	return out
}
