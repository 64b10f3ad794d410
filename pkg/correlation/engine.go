package correlation

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/dd0wney/cluso-corrnet/pkg/market"
	"github.com/dd0wney/cluso-corrnet/pkg/parallel"
	"github.com/dd0wney/cluso-corrnet/pkg/validation"
)

// EngineOptions configures the correlation engine
type EngineOptions struct {
	// MinOverlap is the least number of shared observations for a defined pair
	MinOverlap int
	// Workers computes rows of the upper triangle concurrently when > 1
	Workers int
}

// DefaultEngineOptions returns the defaults
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		MinOverlap: 2,
		Workers:    1,
	}
}

// Validate checks the options
func (o EngineOptions) Validate() error {
	return validation.NewConfigValidator("EngineOptions").
		MinInt("MinOverlap", o.MinOverlap, 2).
		RangeInt("Workers", o.Workers, 1, parallel.MaxWorkers).
		Validate()
}

// Engine computes pairwise-complete Pearson correlation
type Engine struct {
	opts EngineOptions
}

// NewEngine creates an engine after validating its options
func NewEngine(opts EngineOptions) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

type pairResult struct {
	rho     float64
	overlap int
	defined bool
}

// Compute correlates every pair of assets over the rows where both have a return.
//
// A pair is undefined when fewer than MinOverlap rows overlap or when either
// series is constant over the overlap. The diagonal is 1.0 for every asset.
// The result does not depend on the number of workers.
func (e *Engine) Compute(rm *market.ReturnsMatrix) (*Matrix, error) {
	if rm == nil || rm.NumAssets() == 0 {
		return nil, ErrNoAssets
	}

	n := rm.NumAssets()
	values := make([][]float64, n)
	valid := make([][]bool, n)
	for col := 0; col < n; col++ {
		values[col], valid[col] = rm.Series(col)
	}

	// rows[i][k] holds pair (i, i+1+k)
	rows := make([][]pairResult, n)
	err := parallel.ForEachIndex(e.opts.Workers, n, func(i int) {
		row := make([]pairResult, n-i-1)
		x := make([]float64, 0, rm.Rows())
		y := make([]float64, 0, rm.Rows())
		for j := i + 1; j < n; j++ {
			row[j-i-1] = e.pair(values[i], valid[i], values[j], valid[j], x[:0], y[:0])
		}
		rows[i] = row
	})
	if err != nil {
		return nil, err
	}

	m := newMatrix(rm.Tickers(), e.opts.MinOverlap)
	for i := 0; i < n; i++ {
		m.setDiagonal(i, rm.ValidCount(i))
		for k, cell := range rows[i] {
			m.set(i, i+1+k, cell)
		}
	}
	return m, nil
}

func (e *Engine) pair(xv []float64, xok []bool, yv []float64, yok []bool, x, y []float64) pairResult {
	for t := range xv {
		if xok[t] && yok[t] {
			x = append(x, xv[t])
			y = append(y, yv[t])
		}
	}

	res := pairResult{overlap: len(x)}
	if len(x) < e.opts.MinOverlap || constant(x) || constant(y) {
		return res
	}

	rho := stat.Correlation(x, y, nil)
	if math.IsNaN(rho) {
		return res
	}
	res.rho = math.Max(-1, math.Min(1, rho))
	res.defined = true
	return res
}

func constant(s []float64) bool {
	for _, v := range s[1:] {
		if v != s[0] {
			return false
		}
	}
	return true
}
