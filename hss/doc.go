// Package hss implements Hierarchically Semi-Separable matrices and their
// shared-memory application and solve engines.
//
// An HSS matrix is a binary tree over a contiguous partition of the row and
// column ranges. Leaves hold an explicit diagonal block D; every non-root
// node holds row and column generators U, V, and internal nodes hold the
// transfer blocks B01, B10 coupling their children's compressed bases. The
// off-diagonal block between siblings is therefore never stored densely.
//
// Operations:
//
//   - Apply / ApplyC / ApplyInto: C = op(A)·B + β·C with a two-pass tree
//     traversal (leaves to root compressing B, root to leaves expanding the
//     corrections). Child subtrees run as concurrent tasks down to a depth
//     cutoff (WithTaskDepth); results do not depend on the cutoff.
//   - Factor / Solve: hierarchical elimination of the tree via nested
//     Sherman-Morrison-Woodbury updates, then an O(n·r²) solve per
//     right-hand side. Near-singular pivots are reported through
//     Factorization.NearSingular, not as errors.
//   - Dense: explicit reconstruction for verification.
//   - Random: reproducible, well-conditioned synthetic trees.
//
// Trees are immutable after construction and safe for concurrent use by any
// number of engine calls. The distributed counterpart lives in package
// hssmpi.
package hss
