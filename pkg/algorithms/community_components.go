package algorithms

import (
	"container/list"

	"github.com/dd0wney/cluso-corrnet/pkg/network"
)

// ConnectedComponents finds all connected components in the graph.
// Components are labelled in order of their smallest vertex and the
// modularity of the component partition is reported. Edge sign is ignored
// for connectivity; Modularity is left at 0 when the graph has negative edges.
func ConnectedComponents(g *network.Graph) *CommunityDetectionResult {
	n := g.NumVertices()
	visited := make([]bool, n)
	labels := make([]int, n)
	componentID := 0

	// BFS to find each component
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		queue := list.New()
		queue.PushBack(start)
		visited[start] = true

		for queue.Len() > 0 {
			v, ok := queue.Remove(queue.Front()).(int)
			if !ok {
				continue
			}
			labels[v] = componentID

			for _, a := range g.Adjacent(v) {
				if !visited[a.Vertex] {
					visited[a.Vertex] = true
					queue.PushBack(a.Vertex)
				}
			}
		}

		componentID++
	}

	result := buildResult(g, labels)
	if checkNonNegative(g) == nil {
		result.Modularity = newLevelGraph(g).modularity(labels)
	}
	return result
}
