package market

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Observation is one cell of a price or returns matrix.
// A missing value is Valid == false, never a zero or NaN stand-in.
type Observation struct {
	Value float64
	Valid bool
}

// Present wraps a value as a valid observation.
func Present(v float64) Observation {
	return Observation{Value: v, Valid: true}
}

// Absent is the explicit missing-observation marker.
var Absent = Observation{}

// PriceMatrix is an immutable timestamps × tickers table of optional prices.
// Timestamps are strictly ascending, tickers unique and sorted.
type PriceMatrix struct {
	timestamps []time.Time
	tickers    []string
	index      map[string]int
	columns    [][]Observation // columns[col][row]
}

// NewPriceMatrix creates a price matrix from per-ticker columns aligned on timestamps.
// Present prices must be finite and positive.
func NewPriceMatrix(timestamps []time.Time, columns map[string][]Observation) (*PriceMatrix, error) {
	for i := 1; i < len(timestamps); i++ {
		if !timestamps[i].After(timestamps[i-1]) {
			return nil, fmt.Errorf("%w: row %d (%s) is not after row %d (%s)",
				ErrUnorderedTimestamps, i, timestamps[i].Format(time.RFC3339), i-1, timestamps[i-1].Format(time.RFC3339))
		}
	}

	tickers := make([]string, 0, len(columns))
	for ticker := range columns {
		if ticker == "" {
			return nil, fmt.Errorf("%w: empty ticker", ErrUnknownTicker)
		}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	pm := &PriceMatrix{
		timestamps: append([]time.Time(nil), timestamps...),
		tickers:    tickers,
		index:      make(map[string]int, len(tickers)),
		columns:    make([][]Observation, len(tickers)),
	}

	for col, ticker := range tickers {
		src := columns[ticker]
		if len(src) != len(timestamps) {
			return nil, fmt.Errorf("%w: %s has %d values for %d timestamps", ErrShapeMismatch, ticker, len(src), len(timestamps))
		}
		for row, obs := range src {
			if obs.Valid && !validPrice(obs.Value) {
				return nil, fmt.Errorf("%w: %s at %s = %g", ErrInvalidPrice, ticker, timestamps[row].Format(time.RFC3339), obs.Value)
			}
		}
		pm.columns[col] = append([]Observation(nil), src...)
		pm.index[ticker] = col
	}

	return pm, nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

// Rows returns the number of timestamps
func (pm *PriceMatrix) Rows() int {
	return len(pm.timestamps)
}

// NumAssets returns the number of tickers
func (pm *PriceMatrix) NumAssets() int {
	return len(pm.tickers)
}

// Timestamps returns a copy of the row timestamps
func (pm *PriceMatrix) Timestamps() []time.Time {
	return append([]time.Time(nil), pm.timestamps...)
}

// Timestamp returns the timestamp of a row
func (pm *PriceMatrix) Timestamp(row int) time.Time {
	return pm.timestamps[row]
}

// Tickers returns a copy of the sorted tickers
func (pm *PriceMatrix) Tickers() []string {
	return append([]string(nil), pm.tickers...)
}

// Index returns the column of a ticker
func (pm *PriceMatrix) Index(ticker string) (int, bool) {
	col, ok := pm.index[ticker]
	return col, ok
}

// At returns the price at (row, col) and whether it is present
func (pm *PriceMatrix) At(row, col int) (float64, bool) {
	obs := pm.columns[col][row]
	return obs.Value, obs.Valid
}

// Column returns a copy of a ticker's observations
func (pm *PriceMatrix) Column(ticker string) ([]Observation, error) {
	col, ok := pm.index[ticker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return append([]Observation(nil), pm.columns[col]...), nil
}

// ValidCount returns the number of present prices in a column
func (pm *PriceMatrix) ValidCount(col int) int {
	n := 0
	for _, obs := range pm.columns[col] {
		if obs.Valid {
			n++
		}
	}
	return n
}

// Between returns the rows with start <= timestamp < end.
// A zero start or end leaves that side open.
func (pm *PriceMatrix) Between(start, end time.Time) *PriceMatrix {
	lo := 0
	if !start.IsZero() {
		lo = sort.Search(len(pm.timestamps), func(i int) bool { return !pm.timestamps[i].Before(start) })
	}
	hi := len(pm.timestamps)
	if !end.IsZero() {
		hi = sort.Search(len(pm.timestamps), func(i int) bool { return !pm.timestamps[i].Before(end) })
	}
	if hi < lo {
		hi = lo
	}

	out := &PriceMatrix{
		timestamps: append([]time.Time(nil), pm.timestamps[lo:hi]...),
		tickers:    append([]string(nil), pm.tickers...),
		index:      make(map[string]int, len(pm.tickers)),
		columns:    make([][]Observation, len(pm.tickers)),
	}
	for col, ticker := range pm.tickers {
		out.index[ticker] = col
		out.columns[col] = append([]Observation(nil), pm.columns[col][lo:hi]...)
	}
	return out
}

// PriceMatrixBuilder merges per-ticker observations onto the union of timestamps.
// Cells never observed stay absent; nothing is interpolated.
type PriceMatrixBuilder struct {
	times  map[int64]time.Time
	series map[string]map[int64]float64
}

// NewPriceMatrixBuilder creates an empty builder
func NewPriceMatrixBuilder() *PriceMatrixBuilder {
	return &PriceMatrixBuilder{
		times:  make(map[int64]time.Time),
		series: make(map[string]map[int64]float64),
	}
}

// AddTicker declares a ticker even if it never receives a price,
// so that it is reported downstream instead of silently missing.
func (b *PriceMatrixBuilder) AddTicker(ticker string) {
	if _, ok := b.series[ticker]; !ok {
		b.series[ticker] = make(map[int64]float64)
	}
}

// Set records one price observation
func (b *PriceMatrixBuilder) Set(ts time.Time, ticker string, price float64) error {
	if ticker == "" {
		return fmt.Errorf("%w: empty ticker", ErrUnknownTicker)
	}
	if !validPrice(price) {
		return fmt.Errorf("%w: %s at %s = %g", ErrInvalidPrice, ticker, ts.Format(time.RFC3339), price)
	}

	key := ts.UnixNano()
	b.AddTicker(ticker)
	if _, dup := b.series[ticker][key]; dup {
		return fmt.Errorf("%w: %s at %s", ErrDuplicateObservation, ticker, ts.Format(time.RFC3339))
	}
	b.series[ticker][key] = price
	if _, ok := b.times[key]; !ok {
		b.times[key] = ts
	}
	return nil
}

// Build creates the immutable price matrix
func (b *PriceMatrixBuilder) Build() (*PriceMatrix, error) {
	keys := make([]int64, 0, len(b.times))
	for k := range b.times {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	timestamps := make([]time.Time, len(keys))
	for i, k := range keys {
		timestamps[i] = b.times[k]
	}

	columns := make(map[string][]Observation, len(b.series))
	for ticker, prices := range b.series {
		col := make([]Observation, len(keys))
		for i, k := range keys {
			if p, ok := prices[k]; ok {
				col[i] = Present(p)
			}
		}
		columns[ticker] = col
	}

	return NewPriceMatrix(timestamps, columns)
}
