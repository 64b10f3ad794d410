package market

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// ReturnKind selects how consecutive prices turn into a return
type ReturnKind string

const (
	// SimpleReturn is (p[t] - p[t-1]) / p[t-1]
	SimpleReturn ReturnKind = "simple"
	// LogReturn is ln(p[t] / p[t-1])
	LogReturn ReturnKind = "log"
)

// Interval is the pair of consecutive price timestamps a return row spans
type Interval struct {
	From time.Time
	To   time.Time
}

// ReturnsMatrix is an immutable intervals × tickers table of optional returns.
type ReturnsMatrix struct {
	intervals []Interval
	tickers   []string
	index     map[string]int
	columns   [][]Observation // columns[col][row]
}

// NewReturnsMatrix creates a returns matrix from per-ticker columns.
// Callers that window or resample returns themselves can hand the result
// straight to the correlation engine.
func NewReturnsMatrix(intervals []Interval, columns map[string][]Observation) (*ReturnsMatrix, error) {
	for i, iv := range intervals {
		if !iv.To.After(iv.From) {
			return nil, fmt.Errorf("%w: interval %d ends before it starts", ErrUnorderedTimestamps, i)
		}
		if i > 0 && iv.From.Before(intervals[i-1].To) {
			return nil, fmt.Errorf("%w: interval %d overlaps interval %d", ErrUnorderedTimestamps, i, i-1)
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

	rm := &ReturnsMatrix{
		intervals: append([]Interval(nil), intervals...),
		tickers:   tickers,
		index:     make(map[string]int, len(tickers)),
		columns:   make([][]Observation, len(tickers)),
	}

	for col, ticker := range tickers {
		src := columns[ticker]
		if len(src) != len(intervals) {
			return nil, fmt.Errorf("%w: %s has %d values for %d intervals", ErrShapeMismatch, ticker, len(src), len(intervals))
		}
		for row, obs := range src {
			if obs.Valid && (math.IsNaN(obs.Value) || math.IsInf(obs.Value, 0)) {
				return nil, fmt.Errorf("%s row %d: return must be finite, got %g", ticker, row, obs.Value)
			}
		}
		rm.columns[col] = append([]Observation(nil), src...)
		rm.index[ticker] = col
	}

	return rm, nil
}

// Rows returns the number of return rows
func (rm *ReturnsMatrix) Rows() int {
	return len(rm.intervals)
}

// NumAssets returns the number of tickers
func (rm *ReturnsMatrix) NumAssets() int {
	return len(rm.tickers)
}

// Tickers returns a copy of the sorted tickers
func (rm *ReturnsMatrix) Tickers() []string {
	return append([]string(nil), rm.tickers...)
}

// Intervals returns a copy of the row intervals
func (rm *ReturnsMatrix) Intervals() []Interval {
	return append([]Interval(nil), rm.intervals...)
}

// Interval returns the timestamps a row spans
func (rm *ReturnsMatrix) Interval(row int) Interval {
	return rm.intervals[row]
}

// Index returns the column of a ticker
func (rm *ReturnsMatrix) Index(ticker string) (int, bool) {
	col, ok := rm.index[ticker]
	return col, ok
}

// At returns the return at (row, col) and whether it is defined
func (rm *ReturnsMatrix) At(row, col int) (float64, bool) {
	obs := rm.columns[col][row]
	return obs.Value, obs.Valid
}

// Series returns copies of a column's values and validity flags
func (rm *ReturnsMatrix) Series(col int) ([]float64, []bool) {
	values := make([]float64, len(rm.intervals))
	valid := make([]bool, len(rm.intervals))
	for row, obs := range rm.columns[col] {
		values[row] = obs.Value
		valid[row] = obs.Valid
	}
	return values, valid
}

// ValidCount returns the number of defined returns in a column
func (rm *ReturnsMatrix) ValidCount(col int) int {
	n := 0
	for _, obs := range rm.columns[col] {
		if obs.Valid {
			n++
		}
	}
	return n
}

// Tail returns the last n rows, or the whole matrix when n <= 0 or n >= Rows().
// This is how a rolling correlation window is cut from the full history.
func (rm *ReturnsMatrix) Tail(n int) *ReturnsMatrix {
	if n <= 0 || n >= len(rm.intervals) {
		return rm
	}
	lo := len(rm.intervals) - n

	out := &ReturnsMatrix{
		intervals: append([]Interval(nil), rm.intervals[lo:]...),
		tickers:   append([]string(nil), rm.tickers...),
		index:     make(map[string]int, len(rm.tickers)),
		columns:   make([][]Observation, len(rm.tickers)),
	}
	for col, ticker := range rm.tickers {
		out.index[ticker] = col
		out.columns[col] = append([]Observation(nil), rm.columns[col][lo:]...)
	}
	return out
}

// ReturnsOptions configures the returns computation
type ReturnsOptions struct {
	Kind ReturnKind
}

// DefaultReturnsOptions returns simple percentage returns
func DefaultReturnsOptions() ReturnsOptions {
	return ReturnsOptions{Kind: SimpleReturn}
}

// Validate checks the options
func (o ReturnsOptions) Validate() error {
	return validation.NewConfigValidator("ReturnsOptions").
		OneOf("Kind", string(o.Kind), []string{string(SimpleReturn), string(LogReturn)}).
		Validate()
}

// ReturnsComputer turns a price matrix into a returns matrix
type ReturnsComputer struct {
	opts ReturnsOptions
}

// NewReturnsComputer creates a computer after validating its options
func NewReturnsComputer(opts ReturnsOptions) (*ReturnsComputer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &ReturnsComputer{opts: opts}, nil
}

// Compute derives periodic returns between consecutive timestamps.
//
// A return is defined only when both prices of a consecutive pair are present.
// Assets for which no return can be computed are left out of the result and
// reported as *InsufficientDataError values; the computation fails only when
// no asset survives. Leading rows that are absent for every surviving asset
// are dropped.
func (rc *ReturnsComputer) Compute(pm *PriceMatrix) (*ReturnsMatrix, []*InsufficientDataError, error) {
	if pm == nil || pm.Rows() < 2 {
		return nil, nil, ErrTooFewTimestamps
	}

	n := pm.Rows()
	var excluded []*InsufficientDataError
	kept := make(map[string][]Observation, pm.NumAssets())

	for col, ticker := range pm.tickers {
		prices := pm.columns[col]
		validPrices := pm.ValidCount(col)

		returns := make([]Observation, n-1)
		validReturns := 0
		for t := 1; t < n; t++ {
			prev, cur := prices[t-1], prices[t]
			if !prev.Valid || !cur.Valid || prev.Value == 0 {
				continue
			}
			r := rc.periodReturn(prev.Value, cur.Value)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			returns[t-1] = Present(r)
			validReturns++
		}

		if validPrices < 2 || validReturns == 0 {
			excluded = append(excluded, &InsufficientDataError{
				Ticker:       ticker,
				ValidPrices:  validPrices,
				ValidReturns: validReturns,
			})
			continue
		}
		kept[ticker] = returns
	}

	if len(kept) == 0 {
		return nil, excluded, fmt.Errorf("%w: %d of %d assets excluded", ErrNoUsableAssets, len(excluded), pm.NumAssets())
	}

	// Drop leading rows no surviving asset has a return for
	first := n - 1
	for _, returns := range kept {
		for row, obs := range returns {
			if obs.Valid {
				if row < first {
					first = row
				}
				break
			}
		}
	}

	intervals := make([]Interval, 0, n-1-first)
	for row := first; row < n-1; row++ {
		intervals = append(intervals, Interval{From: pm.timestamps[row], To: pm.timestamps[row+1]})
	}
	for ticker, returns := range kept {
		kept[ticker] = returns[first:]
	}

	rm, err := NewReturnsMatrix(intervals, kept)
	if err != nil {
		return nil, excluded, err
	}
	return rm, excluded, nil
}

func (rc *ReturnsComputer) periodReturn(prev, cur float64) float64 {
	if rc.opts.Kind == LogReturn {
		return math.Log(cur / prev)
	}
	return (cur - prev) / prev
}
