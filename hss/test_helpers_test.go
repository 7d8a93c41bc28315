// SPDX-License-Identifier: MIT
package hss_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hss/hss"
	"github.com/katalvlaran/hss/matrix"
)

// RandomDense RETURNS an r×c matrix with deterministic U(-1,1) entries.
func RandomDense(t *testing.T, r, c int, seed int64) *matrix.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	m, err := matrix.NewDense(r, c)
	require.NoError(t, err)
	raw := m.Raw()
	for i := range raw {
		raw[i] = rng.Float64()*2 - 1
	}

	return m
}

// MustDense BUILDS a Dense from a row-major literal.
func MustDense(t *testing.T, r, c int, vals ...float64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewDenseFrom(r, c, vals)
	require.NoError(t, err)

	return m
}

// RandomTree BUILDS a reproducible tree.
func RandomTree(t *testing.T, n, leaf, rank int, seed int64) *hss.Matrix {
	t.Helper()
	h, err := hss.Random(rand.New(rand.NewSource(seed)), n, leaf, rank)
	require.NoError(t, err)

	return h
}

// AllClose ASSERTS ‖want − got‖_F ≤ tol·max(1, ‖want‖_F).
func AllClose(t *testing.T, want, got *matrix.Dense, tol float64) {
	t.Helper()
	require.Equal(t, want.Rows(), got.Rows(), "rows")
	require.Equal(t, want.Cols(), got.Cols(), "cols")
	diff, err := matrix.Sub(want, got)
	require.NoError(t, err)
	dn, _ := matrix.NormF(diff)
	wn, _ := matrix.NormF(want)
	require.LessOrEqual(t, dn, tol*max(1, wn), "relative error %g", dn/max(1, wn))
}

// TwoLeaf BUILDS the 4×4 tree
//
//	[1 2 | 2 0]
//	[3 4 | 0 0]
//	[0 3 | 5 6]
//	[0 3 | 7 8]
//
// with rank-1 generators on both leaves.
func TwoLeaf(t *testing.T) *hss.Matrix {
	t.Helper()
	l0, err := hss.NewLeaf(MustDense(t, 2, 2, 1, 2, 3, 4), MustDense(t, 2, 1, 1, 0), MustDense(t, 2, 1, 0, 1))
	require.NoError(t, err)
	l1, err := hss.NewLeaf(MustDense(t, 2, 2, 5, 6, 7, 8), MustDense(t, 2, 1, 1, 1), MustDense(t, 2, 1, 1, 0))
	require.NoError(t, err)
	root, err := hss.NewInternal(nil, nil, MustDense(t, 1, 1, 2), MustDense(t, 1, 1, 3), l0, l1)
	require.NoError(t, err)

	return root
}
