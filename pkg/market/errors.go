package market

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrInsufficientData     = errors.New("insufficient data")
	ErrTooFewTimestamps     = errors.New("price matrix needs at least 2 timestamps")
	ErrNoUsableAssets       = errors.New("no asset has enough data to compute returns")
	ErrInvalidPrice         = errors.New("price must be finite and positive")
	ErrUnorderedTimestamps  = errors.New("timestamps must be strictly ascending")
	ErrDuplicateTicker      = errors.New("duplicate ticker")
	ErrDuplicateObservation = errors.New("duplicate observation")
	ErrShapeMismatch        = errors.New("column length does not match row count")
	ErrUnknownTicker        = errors.New("unknown ticker")
)

// InsufficientDataError reports an asset that was excluded because no
// return could be computed for it.
type InsufficientDataError struct {
	Ticker       string
	ValidPrices  int // present observations in the price matrix
	ValidReturns int // consecutive pairs that produced a return
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	if e.ValidPrices < 2 {
		return fmt.Sprintf("%s: %d valid prices, need at least 2", e.Ticker, e.ValidPrices)
	}
	return fmt.Sprintf("%s: %d valid prices but no consecutive pair", e.Ticker, e.ValidPrices)
}

// Unwrap lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Unwrap() error {
	return ErrInsufficientData
}
