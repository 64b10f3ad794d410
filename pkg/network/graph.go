package network

import (
	"fmt"
	"math"
	"sort"
)

// Edge is an undirected weighted edge with Source < Target.
// Correlation is the matrix entry the weight was derived from.
type Edge struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Weight      float64 `json:"weight"`
	Correlation float64 `json:"correlation"`
}

// Adjacent is one neighbor of a vertex, addressed by vertex index
type Adjacent struct {
	Vertex int
	Weight float64
}

// Neighbor is one neighbor of a vertex, addressed by ticker
type Neighbor struct {
	Vertex string  `json:"vertex"`
	Weight float64 `json:"weight"`
}

// Graph is an immutable weighted undirected graph over sorted vertex identifiers.
// Isolated vertices are part of the graph.
type Graph struct {
	vertices []string
	index    map[string]int
	edges    []Edge // sorted by (Source, Target)
	adj      [][]Adjacent
	degree   []float64
	total    float64
}

// NewGraph builds a graph. Edge endpoints are normalized so that Source < Target.
func NewGraph(vertices []string, edges []Edge) (*Graph, error) {
	g := &Graph{
		vertices: append([]string(nil), vertices...),
		index:    make(map[string]int, len(vertices)),
	}
	sort.Strings(g.vertices)
	for i, v := range g.vertices {
		if _, dup := g.index[v]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateVertex, v)
		}
		g.index[v] = i
	}

	g.edges = make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.Source > e.Target {
			e.Source, e.Target = e.Target, e.Source
		}
		if e.Source == e.Target {
			return nil, fmt.Errorf("%w: %s", ErrSelfLoop, e.Source)
		}
		if _, ok := g.index[e.Source]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVertex, e.Source)
		}
		if _, ok := g.index[e.Target]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownVertex, e.Target)
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) {
			return nil, fmt.Errorf("%w: %s-%s = %g", ErrInvalidWeight, e.Source, e.Target, e.Weight)
		}
		g.edges = append(g.edges, e)
	}
	sortEdges(g.edges)

	for k := 1; k < len(g.edges); k++ {
		if g.edges[k-1].Source == g.edges[k].Source && g.edges[k-1].Target == g.edges[k].Target {
			return nil, fmt.Errorf("%w: %s-%s", ErrDuplicateEdge, g.edges[k].Source, g.edges[k].Target)
		}
	}

	g.link()
	return g, nil
}

// link derives adjacency and degrees from the validated, sorted edge list
func (g *Graph) link() {
	g.adj = make([][]Adjacent, len(g.vertices))
	g.degree = make([]float64, len(g.vertices))
	g.total = 0
	for _, e := range g.edges {
		i, j := g.index[e.Source], g.index[e.Target]
		g.adj[i] = append(g.adj[i], Adjacent{Vertex: j, Weight: e.Weight})
		g.adj[j] = append(g.adj[j], Adjacent{Vertex: i, Weight: e.Weight})
		g.degree[i] += e.Weight
		g.degree[j] += e.Weight
		g.total += e.Weight
	}
	for i := range g.adj {
		sort.Slice(g.adj[i], func(a, b int) bool { return g.adj[i][a].Vertex < g.adj[i][b].Vertex })
	}
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].Source != edges[b].Source {
			return edges[a].Source < edges[b].Source
		}
		return edges[a].Target < edges[b].Target
	})
}

// Vertices returns a copy of the sorted vertex identifiers
func (g *Graph) Vertices() []string {
	return append([]string(nil), g.vertices...)
}

// NumVertices returns the number of vertices
func (g *Graph) NumVertices() int {
	return len(g.vertices)
}

// Vertex returns the identifier at index i
func (g *Graph) Vertex(i int) string {
	return g.vertices[i]
}

// Index returns the index of a vertex
func (g *Graph) Index(v string) (int, bool) {
	i, ok := g.index[v]
	return i, ok
}

// Edges returns a copy of the edges sorted by (Source, Target)
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// TotalWeight returns the sum of edge weights
func (g *Graph) TotalWeight() float64 {
	return g.total
}

// HasEdge reports whether a and b are adjacent
func (g *Graph) HasEdge(a, b string) bool {
	_, ok := g.Edge(a, b)
	return ok
}

// Edge returns the edge between a and b in either order
func (g *Graph) Edge(a, b string) (Edge, bool) {
	if a > b {
		a, b = b, a
	}
	k := sort.Search(len(g.edges), func(k int) bool {
		e := g.edges[k]
		return e.Source > a || (e.Source == a && e.Target >= b)
	})
	if k < len(g.edges) && g.edges[k].Source == a && g.edges[k].Target == b {
		return g.edges[k], true
	}
	return Edge{}, false
}

// WeightedDegree returns the sum of the weights of edges incident to v,
// or 0 if v is not a vertex
func (g *Graph) WeightedDegree(v string) float64 {
	i, ok := g.index[v]
	if !ok {
		return 0
	}
	return g.degree[i]
}

// WeightedDegrees returns the weighted degree of every vertex
func (g *Graph) WeightedDegrees() map[string]float64 {
	out := make(map[string]float64, len(g.vertices))
	for i, v := range g.vertices {
		out[v] = g.degree[i]
	}
	return out
}

// Degree returns the number of edges incident to v
func (g *Graph) Degree(v string) int {
	i, ok := g.index[v]
	if !ok {
		return 0
	}
	return len(g.adj[i])
}

// Neighbors returns the sorted neighbors of v
func (g *Graph) Neighbors(v string) []string {
	i, ok := g.index[v]
	if !ok {
		return nil
	}
	out := make([]string, len(g.adj[i]))
	for k, a := range g.adj[i] {
		out[k] = g.vertices[a.Vertex]
	}
	return out
}

// Adjacent returns a copy of the neighbors of vertex i, sorted by index
func (g *Graph) Adjacent(i int) []Adjacent {
	return append([]Adjacent(nil), g.adj[i]...)
}

// Isolated returns the vertices without edges
func (g *Graph) Isolated() []string {
	var out []string
	for i, v := range g.vertices {
		if len(g.adj[i]) == 0 {
			out = append(out, v)
		}
	}
	return out
}

// AdjacencyList returns every vertex with its weighted neighbors.
// Isolated vertices map to an empty list.
func (g *Graph) AdjacencyList() map[string][]Neighbor {
	out := make(map[string][]Neighbor, len(g.vertices))
	for i, v := range g.vertices {
		list := make([]Neighbor, len(g.adj[i]))
		for k, a := range g.adj[i] {
			list[k] = Neighbor{Vertex: g.vertices[a.Vertex], Weight: a.Weight}
		}
		out[v] = list
	}
	return out
}

// NegativeEdgeCount returns the number of edges with weight < 0
func (g *Graph) NegativeEdgeCount() int {
	n := 0
	for _, e := range g.edges {
		if e.Weight < 0 {
			n++
		}
	}
	return n
}

// NonNegative returns a copy of the graph without negative-weight edges
// and the number of edges removed. All vertices are kept.
func (g *Graph) NonNegative() (*Graph, int) {
	kept := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.Weight >= 0 {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(g.edges) {
		return g, 0
	}
	out := &Graph{vertices: g.vertices, index: g.index, edges: kept}
	out.link()
	return out, len(g.edges) - len(kept)
}
