package correlation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// UndefinedReason says why a pair has no correlation value
type UndefinedReason string

const (
	ReasonInsufficientOverlap UndefinedReason = "insufficient_overlap"
	ReasonZeroVariance        UndefinedReason = "zero_variance"
)

// UndefinedPair is one off-diagonal entry without a value
type UndefinedPair struct {
	A       string          `json:"a"`
	B       string          `json:"b"`
	Overlap int             `json:"overlap"`
	Reason  UndefinedReason `json:"reason"`
}

// Matrix is a square, symmetric table of pairwise correlations over sorted tickers.
// Undefined entries are tracked separately from the values; the value stored for
// an undefined entry is meaningless.
type Matrix struct {
	tickers    []string
	index      map[string]int
	values     *mat.SymDense
	defined    []bool // row-major n*n
	overlap    []int  // row-major n*n
	minOverlap int
}

func newMatrix(tickers []string, minOverlap int) *Matrix {
	n := len(tickers)
	m := &Matrix{
		tickers:    append([]string(nil), tickers...),
		index:      make(map[string]int, n),
		values:     newSym(n),
		defined:    make([]bool, n*n),
		overlap:    make([]int, n*n),
		minOverlap: minOverlap,
	}
	for i, t := range m.tickers {
		m.index[t] = i
	}
	return m
}

// newSym allows n == 0, which gonum's constructor rejects
func newSym(n int) *mat.SymDense {
	if n == 0 {
		return &mat.SymDense{}
	}
	return mat.NewSymDense(n, nil)
}

func (m *Matrix) setDiagonal(i, overlap int) {
	n := len(m.tickers)
	m.values.SetSym(i, i, 1.0)
	m.defined[i*n+i] = true
	m.overlap[i*n+i] = overlap
}

func (m *Matrix) set(i, j int, cell pairResult) {
	n := len(m.tickers)
	m.overlap[i*n+j] = cell.overlap
	m.overlap[j*n+i] = cell.overlap
	if !cell.defined {
		return
	}
	m.values.SetSym(i, j, cell.rho)
	m.defined[i*n+j] = true
	m.defined[j*n+i] = true
}

// Size returns the number of assets
func (m *Matrix) Size() int {
	return len(m.tickers)
}

// Tickers returns a copy of the sorted tickers
func (m *Matrix) Tickers() []string {
	return append([]string(nil), m.tickers...)
}

// Index returns the row of a ticker
func (m *Matrix) Index(ticker string) (int, bool) {
	i, ok := m.index[ticker]
	return i, ok
}

// MinOverlap returns the overlap threshold the matrix was computed with
func (m *Matrix) MinOverlap() int {
	return m.minOverlap
}

// At returns the correlation at (i, j) and whether it is defined
func (m *Matrix) At(i, j int) (float64, bool) {
	if !m.defined[i*len(m.tickers)+j] {
		return 0, false
	}
	return m.values.At(i, j), true
}

// Overlap returns the number of observations both assets share
func (m *Matrix) Overlap(i, j int) int {
	return m.overlap[i*len(m.tickers)+j]
}

// Get returns the correlation between two tickers
func (m *Matrix) Get(a, b string) (float64, error) {
	i, ok := m.index[a]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTicker, a)
	}
	j, ok := m.index[b]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTicker, b)
	}
	v, ok := m.At(i, j)
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s (%s)", ErrUndefinedCorrelation, a, b, m.reason(i, j))
	}
	return v, nil
}

func (m *Matrix) reason(i, j int) UndefinedReason {
	if m.Overlap(i, j) < m.minOverlap {
		return ReasonInsufficientOverlap
	}
	return ReasonZeroVariance
}

// UndefinedPairs lists every undefined pair (i < j) in row-major order
func (m *Matrix) UndefinedPairs() []UndefinedPair {
	var out []UndefinedPair
	n := len(m.tickers)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.defined[i*n+j] {
				continue
			}
			out = append(out, UndefinedPair{
				A:       m.tickers[i],
				B:       m.tickers[j],
				Overlap: m.Overlap(i, j),
				Reason:  m.reason(i, j),
			})
		}
	}
	return out
}

// DefinedPairs counts the defined off-diagonal pairs (i < j)
func (m *Matrix) DefinedPairs() int {
	n := len(m.tickers)
	count := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.defined[i*n+j] {
				count++
			}
		}
	}
	return count
}

// Symmetric returns a copy of the values as a gonum matrix.
// Undefined entries are NaN.
func (m *Matrix) Symmetric() *mat.SymDense {
	n := len(m.tickers)
	out := newSym(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v, ok := m.At(i, j)
			if !ok {
				v = math.NaN()
			}
			out.SetSym(i, j, v)
		}
	}
	return out
}

type matrixJSON struct {
	Tickers    []string     `json:"tickers"`
	MinOverlap int          `json:"min_overlap"`
	Values     [][]*float64 `json:"values"`
	Overlap    [][]int      `json:"overlap"`
}

// MarshalJSON encodes the matrix with null for undefined entries
func (m *Matrix) MarshalJSON() ([]byte, error) {
	n := len(m.tickers)
	out := matrixJSON{
		Tickers:    m.tickers,
		MinOverlap: m.minOverlap,
		Values:     make([][]*float64, n),
		Overlap:    make([][]int, n),
	}
	for i := 0; i < n; i++ {
		out.Values[i] = make([]*float64, n)
		out.Overlap[i] = make([]int, n)
		for j := 0; j < n; j++ {
			if v, ok := m.At(i, j); ok {
				out.Values[i][j] = &v
			}
			out.Overlap[i][j] = m.Overlap(i, j)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a matrix written by MarshalJSON
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var in matrixJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	n := len(in.Tickers)
	if len(in.Values) != n || len(in.Overlap) != n {
		return fmt.Errorf("correlation matrix: %d tickers but %d value rows", n, len(in.Values))
	}
	if !sort.StringsAreSorted(in.Tickers) {
		return fmt.Errorf("correlation matrix: tickers are not sorted")
	}

	out := newMatrix(in.Tickers, in.MinOverlap)
	for i := 0; i < n; i++ {
		if len(in.Values[i]) != n || len(in.Overlap[i]) != n {
			return fmt.Errorf("correlation matrix: row %d is not %d wide", i, n)
		}
		for j := i; j < n; j++ {
			cell := pairResult{overlap: in.Overlap[i][j]}
			if v := in.Values[i][j]; v != nil {
				cell.rho, cell.defined = *v, true
			}
			if i == j {
				out.setDiagonal(i, cell.overlap)
				continue
			}
			out.set(i, j, cell)
		}
	}
	*m = *out
	return nil
}
