// Package linalg provides a small dense matrix/vector type and a
// partial-pivot LU solve, used where the engine needs a self-contained
// linear solve over a handful of unknowns (the solver's linear-only
// initial estimate for a cold DC start) without standing up the sparse
// MNA backend in internal/mna.
package linalg

import (
	"fmt"
	"math"

	"github.com/anton-oss/circuitsim/internal/simerr"
)

// Matrix is a dense, row-major matrix of float64 elements.
type Matrix struct {
	rows, cols int
	data       []float64
}

// NewMatrix allocates a zero-filled rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Cols() int { return m.cols }

func (m *Matrix) Get(i, j int) float64 { return m.data[i*m.cols+j] }
func (m *Matrix) Set(i, j int, v float64) { m.data[i*m.cols+j] = v }
func (m *Matrix) Add(i, j int, v float64) { m.data[i*m.cols+j] += v }

// Zero resets every element to 0.
func (m *Matrix) Zero() {
	for i := range m.data {
		m.data[i] = 0
	}
}

// Clone returns an independent copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{rows: m.rows, cols: m.cols, data: make([]float64, len(m.data))}
	copy(out.data, m.data)
	return out
}

// Vector is a dense float64 vector.
type Vector struct {
	data []float64
}

func NewVector(size int) *Vector { return &Vector{data: make([]float64, size)} }

func (v *Vector) Size() int { return len(v.data) }
func (v *Vector) Get(i int) float64 { return v.data[i] }
func (v *Vector) Set(i int, val float64) { v.data[i] = val }
func (v *Vector) Add(i int, val float64) { v.data[i] += val }

func (v *Vector) Zero() {
	for i := range v.data {
		v.data[i] = 0
	}
}

func (v *Vector) Clone() *Vector {
	out := &Vector{data: make([]float64, len(v.data))}
	copy(out.data, v.data)
	return out
}

func (v *Vector) InfNorm() float64 {
	max := 0.0
	for _, x := range v.data {
		if a := math.Abs(x); a > max {
			max = a
		}
	}
	return max
}

// maxAbs returns the largest-magnitude element in the matrix.
func (m *Matrix) maxAbs() float64 {
	max := 0.0
	for _, x := range m.data {
		if a := math.Abs(x); a > max {
			max = a
		}
	}
	return max
}

// Solve factors a clone of A via LU with partial pivoting and solves Ax=b.
// Returns ErrDimensionMismatch for a non-square A or a size-mismatched b,
// and ErrSingular when any pivot magnitude falls below
// pivot_eps = 1e-14 * max(|A|).
func Solve(a *Matrix, b *Vector) (*Vector, error) {
	n := a.rows
	if a.rows != a.cols {
		return nil, fmt.Errorf("linalg: %w: matrix is %dx%d, not square", simerr.ErrDimensionMismatch, a.rows, a.cols)
	}
	if b.Size() != n {
		return nil, fmt.Errorf("linalg: %w: vector size %d does not match matrix order %d", simerr.ErrDimensionMismatch, b.Size(), n)
	}

	lu := a.Clone()
	x := b.Clone()
	pivotEps := 1e-14 * math.Max(a.maxAbs(), 1e-300)

	piv := make([]int, n)
	for i := range piv {
		piv[i] = i
	}

	for k := 0; k < n; k++ {
		// Partial pivot: find largest magnitude in column k, rows k..n-1.
		maxRow := k
		maxVal := math.Abs(lu.Get(k, k))
		for i := k + 1; i < n; i++ {
			if v := math.Abs(lu.Get(i, k)); v > maxVal {
				maxVal = v
				maxRow = i
			}
		}

		if maxRow != k {
			swapRows(lu, k, maxRow)
			x.data[k], x.data[maxRow] = x.data[maxRow], x.data[k]
			piv[k], piv[maxRow] = piv[maxRow], piv[k]
		}

		pivot := lu.Get(k, k)
		if math.Abs(pivot) < pivotEps {
			return nil, fmt.Errorf("linalg: %w: pivot %g below threshold %g at row %d", simerr.ErrSingular, pivot, pivotEps, k)
		}

		for i := k + 1; i < n; i++ {
			factor := lu.Get(i, k) / pivot
			if factor == 0 {
				continue
			}
			lu.Set(i, k, factor)
			for j := k + 1; j < n; j++ {
				lu.Add(i, j, -factor*lu.Get(k, j))
			}
			x.data[i] -= factor * x.data[k]
		}
	}

	// Back substitution using the upper triangle of lu.
	for i := n - 1; i >= 0; i-- {
		sum := x.data[i]
		for j := i + 1; j < n; j++ {
			sum -= lu.Get(i, j) * x.data[j]
		}
		x.data[i] = sum / lu.Get(i, i)
	}

	return x, nil
}

func swapRows(m *Matrix, r1, r2 int) {
	if r1 == r2 {
		return
	}
	for j := 0; j < m.cols; j++ {
		i1, i2 := r1*m.cols+j, r2*m.cols+j
		m.data[i1], m.data[i2] = m.data[i2], m.data[i1]
	}
}

// Residual returns Ax - b, for verifying solve accuracy in tests.
func Residual(a *Matrix, x, b *Vector) *Vector {
	n := a.rows
	r := NewVector(n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < a.cols; j++ {
			sum += a.Get(i, j) * x.Get(j)
		}
		r.data[i] = sum - b.Get(i)
	}
	return r
}
