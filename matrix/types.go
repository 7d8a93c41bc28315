// SPDX-License-Identifier: MIT

// Package matrix: domain types shared by dense kernels and structured
// (HSS, block-cyclic) consumers. Errors and options live in dedicated
// files (errors.go, options.go) per the global conventions.
package matrix

import "gonum.org/v1/gonum/blas"

// Matrix represents a two-dimensional mutable array of float64 values.
//
// Complexity notes: all methods are expected O(1) except Clone (O(r*c)).
type Matrix interface {
	// Rows returns the number of rows in the matrix.
	Rows() int

	// Cols returns the number of columns in the matrix.
	Cols() int

	// At retrieves the element at position (i, j).
	// Returns ErrOutOfRange if i<0, i>=Rows(), j<0 or j>=Cols().
	At(i, j int) (float64, error)

	// Set assigns the value v at position (i, j).
	// Returns ErrOutOfRange if indices are invalid.
	Set(i, j int, v float64) error

	// Clone returns a deep copy of the matrix.
	Clone() Matrix
}

// Op selects op(X) in Gemm: X, Xᵀ or Xᴴ.
// Scalars are real, so ConjTrans and Trans produce identical results; the
// distinction is kept so structured callers can state the adjoint explicitly.
type Op byte

const (
	NoTrans   Op = 'N' // op(X) = X
	Trans     Op = 'T' // op(X) = Xᵀ
	ConjTrans Op = 'C' // op(X) = Xᴴ (== Xᵀ for float64)
)

// String returns the single-letter BLAS code.
func (t Op) String() string { return string(rune(t)) }

// Transposed reports whether op(X) swaps rows and columns.
func (t Op) Transposed() bool { return t == Trans || t == ConjTrans }

// blas maps the flag to gonum's BLAS enum.
func (t Op) blas() (blas.Transpose, error) {
	switch t {
	case NoTrans:
		return blas.NoTrans, nil
	case Trans, ConjTrans:
		return blas.Trans, nil
	default:
		return blas.NoTrans, ErrUnknownOp
	}
}

// opShape returns the shape of op(m).
func opShape(t Op, m Matrix) (rows, cols int) {
	if t.Transposed() {
		return m.Cols(), m.Rows()
	}

	return m.Rows(), m.Cols()
}
