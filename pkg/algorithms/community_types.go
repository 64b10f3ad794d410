package algorithms

import "errors"

// ErrNegativeWeight is returned when a graph handed to modularity-based
// community detection has a negative edge weight
var ErrNegativeWeight = errors.New("community detection requires non-negative edge weights")

// ErrMissingLabel is returned when a partition does not label every vertex
var ErrMissingLabel = errors.New("vertex has no community label")

// Community represents a detected community
type Community struct {
	ID             int      `json:"id"`
	Members        []string `json:"members"` // sorted
	Size           int      `json:"size"`
	Density        float64  `json:"density"`         // Edge density within community
	InternalWeight float64  `json:"internal_weight"` // Sum of weights of edges inside
	TotalDegree    float64  `json:"total_degree"`    // Sum of member weighted degrees
}

// CommunityDetectionResult contains detected communities
type CommunityDetectionResult struct {
	Communities   []*Community   `json:"communities"`
	Modularity    float64        `json:"modularity"`     // Quality measure of the partitioning
	NodeCommunity map[string]int `json:"node_community"` // Vertex -> Community ID

	// Louvain bookkeeping; zero for partitions not produced by a detector
	Passes            int       `json:"passes,omitempty"`
	ModularityHistory []float64 `json:"modularity_history,omitempty"`
}

// NumCommunities returns the number of communities
func (r *CommunityDetectionResult) NumCommunities() int {
	return len(r.Communities)
}

// LargestCommunity returns the size of the biggest community
func (r *CommunityDetectionResult) LargestCommunity() int {
	largest := 0
	for _, c := range r.Communities {
		if c.Size > largest {
			largest = c.Size
		}
	}
	return largest
}

// Members returns the members of a community, or nil for an unknown label
func (r *CommunityDetectionResult) Members(id int) []string {
	if id < 0 || id >= len(r.Communities) {
		return nil
	}
	return r.Communities[id].Members
}
