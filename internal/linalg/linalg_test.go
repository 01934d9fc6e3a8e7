package linalg

import (
	"math/rand"
	"testing"

	"github.com/anton-oss/circuitsim/internal/simerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveDiagonal(t *testing.T) {
	a := NewMatrix(2, 2)
	a.Set(0, 0, 2)
	a.Set(1, 1, 4)
	b := NewVector(2)
	b.Set(0, 4)
	b.Set(1, 8)

	x, err := Solve(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x.Get(0), 1e-12)
	assert.InDelta(t, 2.0, x.Get(1), 1e-12)
}

func TestSolveRandomWellConditioned(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := 3 + trial%5
		a := NewMatrix(n, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				a.Set(i, j, rng.Float64()*2-1)
			}
			// Diagonal dominance keeps the system well-conditioned.
			a.Add(i, i, float64(n)*2)
		}
		b := NewVector(n)
		for i := 0; i < n; i++ {
			b.Set(i, rng.Float64()*10-5)
		}

		x, err := Solve(a, b)
		require.NoError(t, err)

		r := Residual(a, x, b)
		tol := 1e-9 * (1 + b.InfNorm())
		assert.LessOrEqual(t, r.InfNorm(), tol)
	}
}

func TestSolveSingular(t *testing.T) {
	a := NewMatrix(2, 2)
	// Row 2 is a multiple of row 1: singular.
	a.Set(0, 0, 1)
	a.Set(0, 1, 2)
	a.Set(1, 0, 2)
	a.Set(1, 1, 4)
	b := NewVector(2)

	_, err := Solve(a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, simerr.ErrSingular)
}

func TestSolveDimensionMismatch(t *testing.T) {
	a := NewMatrix(2, 3)
	b := NewVector(2)
	_, err := Solve(a, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, simerr.ErrDimensionMismatch)

	a2 := NewMatrix(2, 2)
	b2 := NewVector(3)
	_, err = Solve(a2, b2)
	require.Error(t, err)
	assert.ErrorIs(t, err, simerr.ErrDimensionMismatch)
}
