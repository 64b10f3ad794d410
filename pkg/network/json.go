package network

import "encoding/json"

type nodeJSON struct {
	ID             string  `json:"id"`
	Degree         int     `json:"degree"`
	WeightedDegree float64 `json:"weighted_degree"`
}

type graphJSON struct {
	Nodes []nodeJSON `json:"nodes"`
	Links []Edge     `json:"links"`
}

// MarshalJSON encodes the graph in node-link form
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{
		Nodes: make([]nodeJSON, len(g.vertices)),
		Links: g.edges,
	}
	if out.Links == nil {
		out.Links = []Edge{}
	}
	for i, v := range g.vertices {
		out.Nodes[i] = nodeJSON{ID: v, Degree: len(g.adj[i]), WeightedDegree: g.degree[i]}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes node-link JSON. Degrees are recomputed from the links.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var in graphJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	vertices := make([]string, len(in.Nodes))
	for i, n := range in.Nodes {
		vertices[i] = n.ID
	}
	out, err := NewGraph(vertices, in.Links)
	if err != nil {
		return err
	}
	*g = *out
	return nil
}
