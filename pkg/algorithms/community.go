package algorithms

import (
	"math"
	"sort"

	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// LouvainOptions configures Louvain community detection
type LouvainOptions struct {
	MaxPasses int     // Aggregation levels; caps total work
	MaxSweeps int     // Local-move sweeps per level
	MinGain   float64 // A move must improve modularity by more than this
}

// DefaultLouvainOptions returns default Louvain configuration
func DefaultLouvainOptions() LouvainOptions {
	return LouvainOptions{
		MaxPasses: 20,
		MaxSweeps: 100,
		MinGain:   1e-12,
	}
}

// Validate checks the options
func (o LouvainOptions) Validate() error {
	return validation.NewConfigValidator("LouvainOptions").
		Positive("MaxPasses", o.MaxPasses).
		Positive("MaxSweeps", o.MaxSweeps).
		RangeFloat("MinGain", o.MinGain, 0, math.MaxFloat64).
		Validate()
}

// Louvain detects communities by greedy modularity optimization.
//
// Each pass moves single vertices, visited in ascending order, into the
// neighboring community with the largest gain until a sweep makes no move,
// then collapses every community into one vertex. Equal gains go to the
// lowest community label and a vertex only leaves its community for a strict
// improvement, so identical inputs always produce identical partitions.
type Louvain struct {
	opts LouvainOptions
}

// NewLouvain creates a detector after validating its options
func NewLouvain(opts LouvainOptions) (*Louvain, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Louvain{opts: opts}, nil
}

// Detect partitions the vertices of g. Every vertex, isolated ones included,
// ends up in exactly one community. A graph without edges yields singletons
// and Q = 0. Negative weights are rejected with ErrNegativeWeight.
func (l *Louvain) Detect(g *network.Graph) (*CommunityDetectionResult, error) {
	if err := checkNonNegative(g); err != nil {
		return nil, err
	}

	n := g.NumVertices()
	lg := newLevelGraph(g)

	// membership[v] is the level vertex that original vertex v belongs to
	membership := make([]int, n)
	for i := range membership {
		membership[i] = i
	}

	history := []float64{lg.modularity(membership)}
	passes := 0

	for passes < l.opts.MaxPasses && lg.m2 > 0 {
		assign, moved, sweepQ := l.localMoves(lg)
		if !moved {
			break
		}
		passes++
		history = append(history, sweepQ...)

		assign, communities := relabel(assign)
		for v := range membership {
			membership[v] = assign[membership[v]]
		}
		if communities == lg.size() {
			break
		}
		lg = lg.aggregate(assign, communities)
	}

	final, _ := relabel(membership)
	result := buildResult(g, final)
	result.Passes = passes
	result.ModularityHistory = history
	result.Modularity = history[len(history)-1]
	return result, nil
}

// localMoves runs sweeps over one level until no vertex moves.
// It returns the community of every level vertex and the modularity after
// each sweep that moved something.
func (l *Louvain) localMoves(lg *levelGraph) ([]int, bool, []float64) {
	n := lg.size()
	assign := make([]int, n)
	tot := make([]float64, n)
	for i := 0; i < n; i++ {
		assign[i] = i
		tot[i] = lg.k[i]
	}

	// scratch for weights from the current vertex to each community
	weightTo := make([]float64, n)
	seen := make([]bool, n)
	var touched []int

	movedAny := false
	var history []float64

	for sweep := 0; sweep < l.opts.MaxSweeps; sweep++ {
		moves := 0
		for i := 0; i < n; i++ {
			own := assign[i]
			ki := lg.k[i]

			touched = touched[:0]
			for _, a := range lg.adj[i] {
				c := assign[a.Vertex]
				if !seen[c] {
					seen[c] = true
					touched = append(touched, c)
				}
				weightTo[c] += a.Weight
			}

			// take i out of its community, then pick the best place to put it back
			tot[own] -= ki
			best := own
			bestGain := weightTo[own] - tot[own]*ki/lg.m2
			ownGain := bestGain
			for _, c := range touched {
				gain := weightTo[c] - tot[c]*ki/lg.m2
				if gain > bestGain+l.opts.MinGain ||
					(math.Abs(gain-bestGain) <= l.opts.MinGain && c < best) {
					best, bestGain = c, gain
				}
			}
			if bestGain-ownGain <= l.opts.MinGain {
				best = own
			}
			tot[best] += ki

			for _, c := range touched {
				weightTo[c] = 0
				seen[c] = false
			}
			weightTo[own] = 0

			if best != own {
				assign[i] = best
				moves++
			}
		}

		if moves == 0 {
			break
		}
		movedAny = true
		history = append(history, lg.modularity(assign))
	}

	return assign, movedAny, history
}

// relabel maps labels to 0..C-1 in order of first appearance
func relabel(labels []int) ([]int, int) {
	dense := make(map[int]int)
	out := make([]int, len(labels))
	for i, c := range labels {
		id, ok := dense[c]
		if !ok {
			id = len(dense)
			dense[c] = id
		}
		out[i] = id
	}
	return out, len(dense)
}

// buildResult turns a dense labelling of g's vertices into communities
func buildResult(g *network.Graph, labels []int) *CommunityDetectionResult {
	count := 0
	for _, c := range labels {
		if c+1 > count {
			count = c + 1
		}
	}

	communities := make([]*Community, count)
	for c := range communities {
		communities[c] = &Community{ID: c}
	}
	nodeCommunity := make(map[string]int, len(labels))
	for i, c := range labels {
		v := g.Vertex(i)
		communities[c].Members = append(communities[c].Members, v)
		communities[c].TotalDegree += g.WeightedDegree(v)
		nodeCommunity[v] = c
	}

	internalEdges := make([]int, count)
	for _, e := range g.Edges() {
		c := nodeCommunity[e.Source]
		if nodeCommunity[e.Target] == c {
			internalEdges[c]++
			communities[c].InternalWeight += e.Weight
		}
	}

	for c, comm := range communities {
		comm.Size = len(comm.Members)
		if comm.Size > 1 {
			possible := comm.Size * (comm.Size - 1) / 2
			comm.Density = float64(internalEdges[c]) / float64(possible)
		}
	}

	return &CommunityDetectionResult{
		Communities:   communities,
		NodeCommunity: nodeCommunity,
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
