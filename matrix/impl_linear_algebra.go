// SPDX-License-Identifier: MIT
// Package matrix provides the dense kernels consumed by the structured
// (HSS) engines: general multiply-accumulate, transpose, concatenation,
// block copy, norms and element-wise helpers. All functions perform strict
// fail-fast validation and return clear errors on dimension mismatches.
//
// Purpose:
//   - Route every dense sub-multiply through one BLAS-backed Gemm so flop
//     accounting and summation order are uniform across engines.
//   - Define operation tags and shared constants for determinism and error reporting.
//
// Notes:
//   - Gemm delegates to gonum's blas64 Dgemm on the row-major buffers
//     directly (no copies).

package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
)

// ZeroSum is the initial sum value for reductions.
const ZeroSum = 0.0

// Operation name constants for unified error wrapping and reducing magic strings.
const (
	opGemm      = "Gemm"
	opMul       = "Mul"
	opAdd       = "Add"
	opSub       = "Sub"
	opAddInto   = "AddInPlace"
	opScale     = "Scale"
	opTranspose = "Transpose"
	opVConcat   = "VConcat"
	opCopyBlock = "CopyBlock"
	opDot       = "Dot"
	opNormF     = "NormF"
)

// matrixErrorf wraps err with an operation tag, preserving the original error via %w.
// Use only when err != nil to avoid creating a non-nil wrapper around a nil cause.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// Gemm computes C = alpha·op(A)·op(B) + beta·C in place.
// MAIN DESCRIPTION:
//   - The single multiply-accumulate kernel of the package; every HSS
//     generator application and transfer-block product goes through here.
//
// Implementation:
//   - Stage 1: ValidateGemmCompatible (flags, nil, inner and output shapes).
//   - Stage 2: quick returns for empty output (nothing to do) and empty inner
//     dimension (C = beta·C).
//   - Stage 3: blas64 Dgemm on the row-major buffers.
//
// Behavior highlights:
//   - beta == 0 overwrites C (stale NaN in C is not propagated, BLAS semantics).
//   - beta == 1 accumulates into C.
//
// Inputs:
//   - ta, tb: NoTrans, Trans or ConjTrans.
//   - c must not alias a or b.
//
// Errors:
//   - ErrUnknownOp, ErrNilMatrix, ErrDimensionMismatch.
//
// Determinism:
//   - Same inputs → bitwise same output (single-threaded gonum kernel).
//
// Complexity:
//   - Time O(m*n*k), Space O(1) extra.
func Gemm(ta, tb Op, alpha float64, a, b *Dense, beta float64, c *Dense) error {
	if err := ValidateGemmCompatible(ta, tb, a, b, c); err != nil {
		return matrixErrorf(opGemm, err)
	}
	m, n := c.r, c.c
	_, k := opShape(ta, a)
	if m == 0 || n == 0 {
		return nil
	}
	if k == 0 || alpha == 0 {
		scaleInPlace(c, beta)
		return nil
	}
	bta, _ := ta.blas()
	btb, _ := tb.blas()
	ga, gb, gc := a.general(), b.general(), c.general()
	blas64.Implementation().Dgemm(bta, btb, m, n, k, alpha,
		ga.Data, ga.Stride, gb.Data, gb.Stride, beta, gc.Data, gc.Stride)

	return nil
}

// scaleInPlace multiplies every element by beta; beta == 0 clears (BLAS semantics).
func scaleInPlace(c *Dense, beta float64) {
	switch beta {
	case 1:
		return
	case 0:
		clear(c.data)
	default:
		for i := range c.data {
			c.data[i] *= beta
		}
	}
}

// Mul performs standard matrix multiplication C = A × B into a fresh Dense.
// Errors: ErrNilMatrix (nil input), ErrDimensionMismatch (inner mismatch).
// Complexity: Time O(r*n*c), Space O(r*c).
func Mul(a, b *Dense) (*Dense, error) {
	return MulOp(NoTrans, NoTrans, a, b)
}

// MulOp returns op(A)·op(B) in a fresh Dense.
// Errors: see Gemm.
func MulOp(ta, tb Op, a, b *Dense) (*Dense, error) {
	if err := ValidateGemmCompatible(ta, tb, a, b, nil); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	m, _ := opShape(ta, a)
	_, n := opShape(tb, b)
	res, err := NewDense(m, n)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	if err = Gemm(ta, tb, 1, a, b, 0, res); err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	return res, nil
}

// Transpose returns a new matrix with rows and columns swapped (mᵀ).
// The original matrix is never mutated.
// Complexity: O(r*c).
func Transpose(m *Dense) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	res, err := NewDense(m.c, m.r)
	if err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	var i, j int
	for i = 0; i < m.r; i++ {
		for j = 0; j < m.c; j++ {
			res.data[j*m.r+i] = m.data[i*m.c+j]
		}
	}

	return res, nil
}

// Scale returns alpha·m in a fresh Dense.
func Scale(m *Dense, alpha float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScale, err)
	}
	res := m.Copy()
	for i := range res.data {
		res.data[i] *= alpha
	}

	return res, nil
}

// AddInPlace performs dst += alpha·src element-wise.
// Errors: ErrNilMatrix, ErrDimensionMismatch.
// Complexity: O(r*c).
func AddInPlace(dst *Dense, alpha float64, src *Dense) error {
	if err := ValidateBinarySameShape(dst, src); err != nil {
		return matrixErrorf(opAddInto, err)
	}
	for i, v := range src.data {
		dst.data[i] += alpha * v
	}

	return nil
}

// addSub computes out = a + sign*b into a fresh Dense.
func addSub(a, b *Dense, sign float64, opTag string) (*Dense, error) {
	if err := ValidateBinarySameShape(a, b); err != nil {
		return nil, matrixErrorf(opTag, err)
	}
	res := a.Copy()
	for i, v := range b.data {
		res.data[i] += sign * v
	}

	return res, nil
}

// Add computes the element-wise sum A + B into a fresh Dense.
func Add(a, b *Dense) (*Dense, error) { return addSub(a, b, +1, opAdd) }

// Sub computes the element-wise difference A - B into a fresh Dense.
func Sub(a, b *Dense) (*Dense, error) { return addSub(a, b, -1, opSub) }

// VConcat stacks blocks vertically: [top; bottom]. Column counts must match.
// MAIN DESCRIPTION:
//   - Builds the row-wise concatenation of two children's compressed
//     summaries before the parent's generator is applied.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch (column counts differ).
//
// Complexity:
//   - Time O((r1+r2)*c), Space O((r1+r2)*c).
func VConcat(top, bottom *Dense) (*Dense, error) {
	if err := ValidateNotNil(top); err != nil {
		return nil, matrixErrorf(opVConcat, err)
	}
	if err := ValidateNotNil(bottom); err != nil {
		return nil, matrixErrorf(opVConcat, err)
	}
	if top.c != bottom.c {
		return nil, matrixErrorf(opVConcat, ErrDimensionMismatch)
	}
	res, err := NewDense(top.r+bottom.r, top.c)
	if err != nil {
		return nil, matrixErrorf(opVConcat, err)
	}
	copy(res.data, top.data)
	copy(res.data[len(top.data):], bottom.data)

	return res, nil
}

// CopyBlock copies the h×w block of src at (sr, sc) into dst at (dr, dc).
// Errors: ErrNilMatrix, ErrBadShape when either window leaves its matrix.
// Complexity: O(h*w).
func CopyBlock(h, w int, src *Dense, sr, sc int, dst *Dense, dr, dc int) error {
	if err := ValidateNotNil(src); err != nil {
		return matrixErrorf(opCopyBlock, err)
	}
	if err := ValidateNotNil(dst); err != nil {
		return matrixErrorf(opCopyBlock, err)
	}
	if h < 0 || w < 0 || sr < 0 || sc < 0 || dr < 0 || dc < 0 ||
		sr+h > src.r || sc+w > src.c || dr+h > dst.r || dc+w > dst.c {
		return matrixErrorf(opCopyBlock, ErrBadShape)
	}
	for i := 0; i < h; i++ {
		copy(dst.data[(dr+i)*dst.c+dc:(dr+i)*dst.c+dc+w], src.data[(sr+i)*src.c+sc:(sr+i)*src.c+sc+w])
	}

	return nil
}

// Dot returns the Frobenius inner product ⟨A, B⟩ = Σ a_ij·b_ij.
// Errors: ErrNilMatrix, ErrDimensionMismatch.
func Dot(a, b *Dense) (float64, error) {
	if err := ValidateBinarySameShape(a, b); err != nil {
		return 0, matrixErrorf(opDot, err)
	}
	sum := ZeroSum
	for i, v := range a.data {
		sum += v * b.data[i]
	}

	return sum, nil
}

// NormF returns the Frobenius norm, scaled to avoid overflow.
func NormF(m *Dense) (float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return 0, matrixErrorf(opNormF, err)
	}
	var scale, ssq = 0.0, 1.0
	for _, v := range m.data {
		if v == 0 {
			continue
		}
		av := math.Abs(v)
		if scale < av {
			ssq = 1 + ssq*(scale/av)*(scale/av)
			scale = av
		} else {
			ssq += (av / scale) * (av / scale)
		}
	}

	return scale * math.Sqrt(ssq), nil
}

// EqualApprox reports whether a and b have the same shape and every pair of
// elements differs by at most tol·max(1, |a_ij|, |b_ij|).
func EqualApprox(a, b *Dense, tol float64) bool {
	if a == nil || b == nil || a.r != b.r || a.c != b.c {
		return false
	}
	for i, v := range a.data {
		w := b.data[i]
		if math.Abs(v-w) > tol*math.Max(1, math.Max(math.Abs(v), math.Abs(w))) {
			return false
		}
	}

	return true
}
