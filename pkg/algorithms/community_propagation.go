package algorithms

import (
	"fmt"
	"math"

	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

const labelEpsilon = 1e-12

// LabelPropagation detects communities by letting every vertex adopt the
// label carrying the most edge weight among its neighbors. Vertices are
// visited in identifier order and ties go to the smallest label, so the
// result is deterministic. Isolated vertices keep their own label.
//
// It is a fast baseline for Louvain; it does not optimise modularity.
func LabelPropagation(g *network.Graph, maxIterations int) (*CommunityDetectionResult, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("label propagation: max iterations must be >= 1, got %d", maxIterations)
	}
	if err := checkNonNegative(g); err != nil {
		return nil, err
	}

	n := g.NumVertices()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	iterations := 0
	for iterations < maxIterations {
		iterations++
		changed := false

		for v := 0; v < n; v++ {
			adj := g.Adjacent(v)
			if len(adj) == 0 {
				continue
			}

			weight := make(map[int]float64, len(adj))
			for _, a := range adj {
				weight[labels[a.Vertex]] += a.Weight
			}

			best, bestWeight := labels[v], weight[labels[v]]
			for _, label := range sortedKeys(weight) {
				w := weight[label]
				if w > bestWeight+labelEpsilon ||
					(math.Abs(w-bestWeight) <= labelEpsilon && label < best) {
					best, bestWeight = label, w
				}
			}

			if best != labels[v] {
				labels[v] = best
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	dense, _ := relabel(labels)
	result := buildResult(g, dense)
	result.Passes = iterations
	result.Modularity = newLevelGraph(g).modularity(dense)
	return result, nil
}
