package network

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGraph is returned when no vertex reaches the builder
	ErrEmptyGraph = errors.New("graph has no vertices")

	ErrUnknownVertex   = errors.New("unknown vertex")
	ErrDuplicateVertex = errors.New("duplicate vertex")
	ErrSelfLoop        = errors.New("self-loop")
	ErrDuplicateEdge   = errors.New("duplicate edge")
	ErrInvalidWeight   = errors.New("edge weight must be finite")
)

// EmptyGraphError reports that upstream produced no usable assets.
// It is fatal to a run: there is nothing to cluster.
type EmptyGraphError struct {
	Reason string
}

func (e *EmptyGraphError) Error() string {
	if e.Reason == "" {
		return ErrEmptyGraph.Error()
	}
	return fmt.Sprintf("%s: %s", ErrEmptyGraph, e.Reason)
}

func (e *EmptyGraphError) Unwrap() error {
	return ErrEmptyGraph
}
