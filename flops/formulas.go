// SPDX-License-Identifier: MIT

package flops

// GemmFlops is the operation count of C = alpha·op(A)·op(B) + beta·C with
// C m×n and inner dimension k: one multiply and one add per inner term, plus
// one operation per entry of C when beta != 0.
func GemmFlops(m, n, k int, beta float64) int64 {
	if m <= 0 || n <= 0 {
		return 0
	}
	f := 2 * int64(m) * int64(n) * int64(k)
	if beta != 0 {
		f += int64(m) * int64(n)
	}

	return f
}

// LUFlops is the count of an n×n LU factorization with partial pivoting.
func LUFlops(n int) int64 {
	if n <= 0 {
		return 0
	}
	nn := int64(n)

	return 2 * nn * nn * nn / 3
}

// TrsmFlops is the count of one triangular solve of order n with nrhs
// right-hand sides.
func TrsmFlops(n, nrhs int) int64 {
	if n <= 0 || nrhs <= 0 {
		return 0
	}

	return int64(n) * int64(n) * int64(nrhs)
}

// LUSolveFlops is the count of solving with an LU factorization (two
// triangular solves).
func LUSolveFlops(n, nrhs int) int64 { return 2 * TrsmFlops(n, nrhs) }
