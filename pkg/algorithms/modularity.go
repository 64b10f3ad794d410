package algorithms

import (
	"fmt"

	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

// Modularity computes Q = (1/2m) Σ_ij [A_ij - k_i k_j / 2m] δ(c_i, c_j)
// for a labelling of every vertex of g. A graph without edges has Q = 0.
func Modularity(g *network.Graph, labels map[string]int) (float64, error) {
	if err := checkNonNegative(g); err != nil {
		return 0, err
	}
	assign := make([]int, g.NumVertices())
	for i, v := range g.Vertices() {
		label, ok := labels[v]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingLabel, v)
		}
		assign[i] = label
	}
	return newLevelGraph(g).modularity(assign), nil
}

func checkNonNegative(g *network.Graph) error {
	for _, e := range g.Edges() {
		if e.Weight < 0 {
			return fmt.Errorf("%w: %s-%s = %g", ErrNegativeWeight, e.Source, e.Target, e.Weight)
		}
	}
	return nil
}

// levelGraph is the working graph of one Louvain level.
// Self-loop weights are stored doubled, so k[i] = self[i] + Σ adj weights
// and Σ k = 2m.
type levelGraph struct {
	adj  [][]network.Adjacent // no self-loops, sorted by vertex
	self []float64
	k    []float64
	m2   float64
}

func newLevelGraph(g *network.Graph) *levelGraph {
	n := g.NumVertices()
	lg := &levelGraph{
		adj:  make([][]network.Adjacent, n),
		self: make([]float64, n),
		k:    make([]float64, n),
	}
	for i := 0; i < n; i++ {
		lg.adj[i] = g.Adjacent(i)
		for _, a := range lg.adj[i] {
			lg.k[i] += a.Weight
		}
		lg.m2 += lg.k[i]
	}
	return lg
}

func (lg *levelGraph) size() int {
	return len(lg.k)
}

// modularity evaluates Q for any labelling, labels need not be dense
func (lg *levelGraph) modularity(assign []int) float64 {
	if lg.m2 == 0 {
		return 0
	}
	in := make(map[int]float64)
	tot := make(map[int]float64)
	for i := range lg.k {
		c := assign[i]
		tot[c] += lg.k[i]
		in[c] += lg.self[i]
		for _, a := range lg.adj[i] {
			if assign[a.Vertex] == c {
				in[c] += a.Weight
			}
		}
	}

	// Sum in a fixed label order so equal inputs give bit-identical results
	labels := sortedKeys(tot)
	q := 0.0
	for _, c := range labels {
		frac := tot[c] / lg.m2
		q += in[c]/lg.m2 - frac*frac
	}
	return q
}

// aggregate collapses each community into one vertex. assign must be dense.
func (lg *levelGraph) aggregate(assign []int, communities int) *levelGraph {
	next := &levelGraph{
		adj:  make([][]network.Adjacent, communities),
		self: make([]float64, communities),
		k:    make([]float64, communities),
		m2:   lg.m2,
	}
	between := make([]map[int]float64, communities)
	for i := range lg.k {
		c := assign[i]
		next.k[c] += lg.k[i]
		next.self[c] += lg.self[i]
		for _, a := range lg.adj[i] {
			d := assign[a.Vertex]
			if d == c {
				// each internal edge is seen from both ends, which doubles it
				next.self[c] += a.Weight
				continue
			}
			if between[c] == nil {
				between[c] = make(map[int]float64)
			}
			between[c][d] += a.Weight
		}
	}
	for c, row := range between {
		for _, d := range sortedKeys(row) {
			next.adj[c] = append(next.adj[c], network.Adjacent{Vertex: d, Weight: row[d]})
		}
	}
	return next
}
