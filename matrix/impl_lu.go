// SPDX-License-Identifier: MIT

// Package matrix - LU factorization with partial pivoting.
//
// Purpose:
//   - Provide the dense direct solver used at HSS leaves and for the small
//     coupling systems of the hierarchical factorization.
//   - Report singular pivots without failing: the factorization object
//     carries the flag and Solve proceeds regardless.

package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/lapack/lapack64"
)

const (
	opLU      = "LU"
	opLUSolve = "LU.Solve"
)

// LU holds P·A = L·U in packed LAPACK form.
type LU struct {
	n        int
	lu       *Dense // packed factors (unit L below the diagonal, U on and above)
	ipiv     []int  // row interchanges
	singular bool   // exact zero pivot met
}

// Factorize computes the LU factorization of a square matrix with partial
// pivoting. The input is not modified.
// MAIN DESCRIPTION:
//   - Copy A, run lapack64.Getrf on the copy, record singularity.
//
// Behavior highlights:
//   - An exactly zero pivot does NOT produce an error; LU.Singular reports it.
//   - 0×0 input yields an empty, non-singular factorization.
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare.
//
// Complexity:
//   - Time O(n³), Space O(n²).
func Factorize(a *Dense) (*LU, error) {
	if err := ValidateSquareNonNil(a); err != nil {
		return nil, matrixErrorf(opLU, err)
	}
	f := &LU{n: a.r, lu: a.Copy(), ipiv: make([]int, a.r)}
	if f.n == 0 {
		return f, nil
	}
	f.singular = !lapack64.Getrf(f.lu.general(), f.ipiv)

	return f, nil
}

// N returns the order of the factorized matrix.
func (f *LU) N() int { return f.n }

// Singular reports whether an exactly zero pivot was met.
func (f *LU) Singular() bool { return f.singular }

// PivotRatio returns min|u_ii| / max|u_ii| (1 for n == 0).
// Small values flag near-singular systems; 0 means Singular.
func (f *LU) PivotRatio() float64 {
	if f.n == 0 {
		return 1
	}
	lo, hi := math.Inf(1), 0.0
	for i := 0; i < f.n; i++ {
		p := math.Abs(f.lu.data[i*f.n+i])
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if hi == 0 {
		return 0
	}

	return lo / hi
}

// Solve overwrites b with A⁻¹·b.
// Errors: ErrNilMatrix, ErrDimensionMismatch (b.Rows != n).
// Complexity: O(n²·nrhs).
func (f *LU) Solve(b *Dense) error {
	return f.solve(blas.NoTrans, b)
}

// SolveTrans overwrites b with A⁻ᵀ·b.
func (f *LU) SolveTrans(b *Dense) error {
	return f.solve(blas.Trans, b)
}

func (f *LU) solve(t blas.Transpose, b *Dense) error {
	if err := ValidateNotNil(b); err != nil {
		return matrixErrorf(opLUSolve, err)
	}
	if b.r != f.n {
		return matrixErrorf(opLUSolve, fmt.Errorf("rhs rows %d, order %d: %w", b.r, f.n, ErrDimensionMismatch))
	}
	if f.n == 0 || b.c == 0 {
		return nil
	}
	lapack64.Getrs(t, f.lu.general(), b.general(), f.ipiv)

	return nil
}
