package network

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	g, err := NewGraph([]string{"C", "A", "B", "D"}, []Edge{
		{Source: "B", Target: "A", Weight: 0.5, Correlation: 0.5},
		{Source: "B", Target: "C", Weight: 0.75, Correlation: -0.75},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, g.Vertices())
	assert.Equal(t, Edge{Source: "A", Target: "B", Weight: 0.5, Correlation: 0.5}, g.Edges()[0], "endpoints normalized")
	assert.Equal(t, []string{"A", "C"}, g.Neighbors("B"))
	assert.Equal(t, 2, g.Degree("B"))
	assert.Equal(t, 1.25, g.WeightedDegree("B"))
	assert.Equal(t, 0.0, g.WeightedDegree("D"))
	assert.Equal(t, 0.0, g.WeightedDegree("ZZZ"))
	assert.Equal(t, []string{"D"}, g.Isolated())
	assert.Equal(t, 1.25, g.TotalWeight())

	adj := g.AdjacencyList()
	assert.Len(t, adj, 4)
	assert.Empty(t, adj["D"])
	assert.Equal(t, []Neighbor{{Vertex: "B", Weight: 0.75}}, adj["C"])

	i, _ := g.Index("B")
	assert.Equal(t, []Adjacent{{Vertex: 0, Weight: 0.5}, {Vertex: 2, Weight: 0.75}}, g.Adjacent(i))
}

func TestNewGraph_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		vertices []string
		edges    []Edge
		want     error
	}{
		{"duplicate vertex", []string{"A", "A"}, nil, ErrDuplicateVertex},
		{"self loop", []string{"A"}, []Edge{{Source: "A", Target: "A", Weight: 1}}, ErrSelfLoop},
		{"unknown endpoint", []string{"A"}, []Edge{{Source: "A", Target: "B", Weight: 1}}, ErrUnknownVertex},
		{"duplicate edge", []string{"A", "B"}, []Edge{
			{Source: "A", Target: "B", Weight: 1},
			{Source: "B", Target: "A", Weight: 0.5},
		}, ErrDuplicateEdge},
		{"NaN weight", []string{"A", "B"}, []Edge{{Source: "A", Target: "B", Weight: math.NaN()}}, ErrInvalidWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.vertices, tt.edges)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGraph_OwnsVertices(t *testing.T) {
	vertices := []string{"A", "B"}
	g, err := NewGraph(vertices, nil)
	require.NoError(t, err)

	vertices[0] = "Z"
	got := g.Vertices()
	got[1] = "Y"
	assert.Equal(t, []string{"A", "B"}, g.Vertices())
}

func TestGraph_JSON(t *testing.T) {
	g, err := NewGraph([]string{"A", "B", "C"}, []Edge{
		{Source: "A", Target: "B", Weight: 0.8, Correlation: -0.8},
	})
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nodes": [
			{"id": "A", "degree": 1, "weighted_degree": 0.8},
			{"id": "B", "degree": 1, "weighted_degree": 0.8},
			{"id": "C", "degree": 0, "weighted_degree": 0}
		],
		"links": [{"source": "A", "target": "B", "weight": 0.8, "correlation": -0.8}]
	}`, string(data))

	var back Graph
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, g.Vertices(), back.Vertices())
	assert.Equal(t, g.Edges(), back.Edges())
	assert.Equal(t, g.WeightedDegrees(), back.WeightedDegrees())
}

func TestGraph_EmptyLinksEncodeAsArray(t *testing.T) {
	g, err := NewGraph([]string{"A"}, nil)
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"links":[]`)
}
