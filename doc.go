// Package hss is a toolkit for Hierarchically Semi-Separable (HSS) matrices:
// dense operators whose off-diagonal blocks are low rank and are stored as
// nested generators, so that products and solves scale with n·r instead of n².
//
// 🚀 What is in the module?
//
//   - Dense kernels: BLAS-backed Gemm, LU, block copies and concatenation
//   - HSS trees: leaves with D/U/V, internal nodes with B01/B10 couplings
//   - Shared-memory apply, factor and solve with fork/join task recursion
//   - Distributed apply, factor and solve over in-process ranks
//   - Flop accounting per algorithmic phase, exportable to Prometheus
//   - Compression settings loadable from YAML
//
// ✨ Design notes
//
//   - Explicit errors everywhere: shape problems surface before any work
//   - Deterministic results: task scheduling never changes the numbers
//   - Collective calls verify that all ranks agree instead of hanging
//
// Under the hood the module is organized as:
//
//	matrix/    Dense, Gemm, LU and the small kernels every engine uses
//	hss/       the HSS tree and its shared-memory engines
//	comm/      ranks, communicators and collectives inside one process
//	distmat/   2D block-cyclic matrices and grid-to-grid redistribution
//	hssmpi/    the distributed HSS engines
//	flops/     per-phase flop counters and their Prometheus collector
//	compress/  compression options (tolerances, leaf size, rank cap)
//	examples/  a runnable distributed solve
//
// Quick example, C = A·B on a two-leaf tree:
//
//	l0, _ := hss.NewLeaf(d0, u0, v0)
//	l1, _ := hss.NewLeaf(d1, u1, v1)
//	a, _ := hss.NewInternal(nil, nil, b01, b10, l0, l1)
//	c, _ := a.Apply(b)
//
//	go get github.com/katalvlaran/hss
package hss
