package algorithms

import (
	"container/heap"
	"math"

	"github.com/dd0wney/cluso-corrnet/pkg/network"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// PageRankOptions configures PageRank algorithm
type PageRankOptions struct {
	DampingFactor float64 // Usually 0.85
	MaxIterations int
	Tolerance     float64 // Convergence threshold
}

// DefaultPageRankOptions returns default PageRank configuration
func DefaultPageRankOptions() PageRankOptions {
	return PageRankOptions{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// Validate checks the options
func (o PageRankOptions) Validate() error {
	return validation.NewConfigValidator("PageRankOptions").
		RangeFloat("DampingFactor", o.DampingFactor, 0, 1).
		Positive("MaxIterations", o.MaxIterations).
		PositiveFloat("Tolerance", o.Tolerance).
		Validate()
}

// PageRankResult contains PageRank scores for all vertices
type PageRankResult struct {
	Scores     map[string]float64 // Vertex -> PageRank score
	Iterations int                // Number of iterations performed
	Converged  bool               // Whether algorithm converged
	TopNodes   []RankedNode       // Top N vertices by score
}

// RankedNode represents a vertex with its rank
type RankedNode struct {
	Vertex string
	Score  float64
}

// PageRank computes weighted PageRank over the undirected graph. Each edge is
// walked in both directions with probability proportional to |weight|, so a
// strongly correlated asset ranks above a loosely attached one.
// Vertices without edges spread their rank uniformly.
func PageRank(g *network.Graph, opts PageRankOptions) (*PageRankResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := g.NumVertices()
	if n == 0 {
		return &PageRankResult{
			Scores:    make(map[string]float64),
			Converged: true,
		}, nil
	}

	adj := make([][]network.Adjacent, n)
	strength := make([]float64, n)
	for i := 0; i < n; i++ {
		adj[i] = g.Adjacent(i)
		for _, a := range adj[i] {
			strength[i] += math.Abs(a.Weight)
		}
	}

	// Initialize PageRank scores (uniform distribution)
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1.0 / float64(n)
	}
	newScores := make([]float64, n)
	converged := false
	iterations := 0

	for iterations < opts.MaxIterations {
		iterations++

		// Rank held by vertices with no outgoing weight is redistributed evenly
		dangling := 0.0
		for i := 0; i < n; i++ {
			if strength[i] == 0 {
				dangling += scores[i]
			}
		}
		base := (1.0-opts.DampingFactor)/float64(n) + opts.DampingFactor*dangling/float64(n)

		for i := 0; i < n; i++ {
			newScore := base
			for _, a := range adj[i] {
				j := a.Vertex
				newScore += opts.DampingFactor * scores[j] * math.Abs(a.Weight) / strength[j]
			}
			newScores[i] = newScore
		}

		// Check for convergence
		maxDiff := 0.0
		for i := range scores {
			if diff := math.Abs(newScores[i] - scores[i]); diff > maxDiff {
				maxDiff = diff
			}
		}

		scores, newScores = newScores, scores
		if maxDiff < opts.Tolerance {
			converged = true
			break
		}
	}

	// Normalize scores to sum to 1
	sum := 0.0
	for _, score := range scores {
		sum += score
	}
	result := make(map[string]float64, n)
	for i, score := range scores {
		if sum > 0 {
			score /= sum
		}
		result[g.Vertex(i)] = score
	}

	return &PageRankResult{
		Scores:     result,
		Iterations: iterations,
		Converged:  converged,
		TopNodes:   findTopNodes(g.Vertices(), result, 10),
	}, nil
}

// rankedNodeHeap implements a min-heap for RankedNode by score.
// Ties rank the lexicographically smaller vertex higher.
type rankedNodeHeap []RankedNode

func (h rankedNodeHeap) Len() int { return len(h) }
func (h rankedNodeHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Vertex > h[j].Vertex
}
func (h rankedNodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *rankedNodeHeap) Push(x any) {
	*h = append(*h, x.(RankedNode))
}

func (h *rankedNodeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// findTopNodes finds the top N vertices by score using a min-heap.
// Time complexity: O(n log k)
func findTopNodes(vertices []string, scores map[string]float64, n int) []RankedNode {
	if n <= 0 {
		return nil
	}

	h := make(rankedNodeHeap, 0, n)
	heap.Init(&h)

	for _, v := range vertices {
		rn := RankedNode{Vertex: v, Score: scores[v]}

		if h.Len() < n {
			heap.Push(&h, rn)
		} else if rankedBefore(rn, h[0]) {
			heap.Pop(&h)
			heap.Push(&h, rn)
		}
	}

	// Extract elements from heap (will be in ascending order)
	result := make([]RankedNode, h.Len())
	for i := h.Len() - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(RankedNode)
	}

	return result
}

func rankedBefore(a, b RankedNode) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Vertex < b.Vertex
}

// GetTopNodesByPageRank returns top N vertices by PageRank score
func (pr *PageRankResult) GetTopNodesByPageRank(n int) []RankedNode {
	if n > len(pr.TopNodes) {
		return pr.TopNodes
	}
	return pr.TopNodes[:n]
}

// GetNodeRank returns the PageRank score for a specific vertex
func (pr *PageRankResult) GetNodeRank(vertex string) float64 {
	return pr.Scores[vertex]
}
