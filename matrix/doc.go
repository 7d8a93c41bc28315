// Package matrix offers the dense building blocks of the HSS engines.
//
// The matrix package provides:
//
//   - Dense, a row-major float64 matrix with safe accessors, no-copy row
//     windows (RowView) and copy-based extraction (Block, Induced).
//   - Gemm, the BLAS-backed multiply-accumulate kernel C = α·op(A)·op(B) + β·C
//     used for every generator application and transfer-block product.
//   - VConcat and CopyBlock for assembling and splitting compressed summaries.
//   - LU with partial pivoting (Factorize, LU.Solve) for leaf blocks and
//     coupling systems.
//
// Empty shapes (n×0, 0×n) are legal everywhere: rank-0 generators are part
// of the HSS data model.
//
// See the examples in this package and hss for usage patterns.
package matrix
