package algorithms

import "github.com/dd0wney/cluso-corrnet/pkg/network"

// ClusteringCoefficient computes local clustering coefficient for all vertices.
// Measures how close a vertex's neighbors are to being a complete graph;
// weights are ignored. Vertices with fewer than two neighbors score 0.
func ClusteringCoefficient(g *network.Graph) map[string]float64 {
	n := g.NumVertices()
	coefficients := make(map[string]float64, n)

	// Pre-build neighbor sets so each pair check is O(1)
	neighborSets := make([]map[int]bool, n)
	for i := 0; i < n; i++ {
		adj := g.Adjacent(i)
		set := make(map[int]bool, len(adj))
		for _, a := range adj {
			set[a.Vertex] = true
		}
		neighborSets[i] = set
	}

	for i := 0; i < n; i++ {
		adj := g.Adjacent(i)
		k := len(adj)
		if k < 2 {
			coefficients[g.Vertex(i)] = 0.0
			continue
		}

		triangles := 0
		for x := 0; x < k; x++ {
			for y := x + 1; y < k; y++ {
				if neighborSets[adj[x].Vertex][adj[y].Vertex] {
					triangles++
				}
			}
		}

		// Clustering coefficient = actual triangles / possible triangles
		possibleTriangles := k * (k - 1) / 2
		coefficients[g.Vertex(i)] = float64(triangles) / float64(possibleTriangles)
	}

	return coefficients
}

// AverageClusteringCoefficient computes the average clustering coefficient
func AverageClusteringCoefficient(g *network.Graph) float64 {
	coefficients := ClusteringCoefficient(g)
	if len(coefficients) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, v := range g.Vertices() {
		sum += coefficients[v]
	}

	return sum / float64(len(coefficients))
}
