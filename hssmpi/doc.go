// Package hssmpi runs HSS products and solves over a group of processes.
//
// The processes are the ranks of a comm.Comm. Each rank holds the same
// *hss.Matrix; New maps every node of the tree to a contiguous range of ranks
// and stores its blocks block-cyclically (distmat) on a grid over that range.
// Operands are distmat matrices on any grid inside the communicator.
//
//   - Apply, ApplyC and ApplyInto compute op(A)·B (+ β·C) with the same two
//     passes as hss, exchanging compressed summaries between node grids.
//   - Factor and Solve are the distributed counterparts of hss.Factor and
//     hss.Matrix.Solve.
//
// Every call is collective: all ranks of the communicator must make it with
// the same arguments. With the consistency check enabled (the default) the
// ranks verify this and return ErrInconsistent together instead of waiting
// on each other forever.
package hssmpi
