package correlation

import "errors"

var (
	// ErrUndefinedCorrelation is returned for a pair whose correlation cannot be computed.
	// Such a pair can never produce an edge.
	ErrUndefinedCorrelation = errors.New("correlation undefined")

	// ErrUnknownTicker is returned when a ticker is not part of the matrix
	ErrUnknownTicker = errors.New("unknown ticker")

	// ErrNoAssets is returned when the returns matrix has no columns
	ErrNoAssets = errors.New("returns matrix has no assets")
)
