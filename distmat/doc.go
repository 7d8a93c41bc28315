// Package distmat provides dense matrices distributed 2D block-cyclically
// over a contiguous range of ranks of a comm world.
//
// The package provides:
//
//   - Grid: an nprow × npcol process grid over world ranks [lo, lo+size),
//     with block sizes mb × nb and the classic numroc/g2l/l2g/owner maps.
//   - Matrix: a handle whose global shape is known on every process and
//     whose local tile exists only on grid members.
//   - Redistribute: one all-to-all that moves windows between matrices on
//     arbitrary grids, the operation that stitches together data living on
//     the disjoint process subsets of a recursive partition.
//   - Gemm and AddInPlace on a common grid, AllGather to a replicated copy.
//
// All collectives take a context.Context and must be entered by every
// member of the communicator involved.
package distmat
