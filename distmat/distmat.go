// SPDX-License-Identifier: MIT

// Package distmat: the block-cyclic distributed matrix.
package distmat

import (
	"context"
	"fmt"

	"github.com/katalvlaran/hss/flops"
	"github.com/katalvlaran/hss/matrix"
)

// Matrix is one process's handle on a distributed matrix.
// The global shape is known everywhere; local storage exists only on grid
// members (Active).
type Matrix struct {
	grid       *Grid
	rows, cols int
	prow, pcol int
	local      *matrix.Dense // nil when inactive
}

// Zeros allocates a rows×cols zero matrix on g. Non-members receive an
// inactive handle.
// Errors: matrix.ErrInvalidDimensions for negative shapes.
func Zeros(g *Grid, rows, cols int) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, distErrorf("Zeros", matrix.ErrInvalidDimensions)
	}
	m := &Matrix{grid: g, rows: rows, cols: cols, prow: -1, pcol: -1}
	if !g.Active() {
		return m, nil
	}
	m.prow, m.pcol = g.Coords(g.me)
	lr := numroc(rows, g.mb, m.prow, g.nprow)
	lc := numroc(cols, g.nb, m.pcol, g.npcol)
	local, err := matrix.NewDense(lr, lc)
	if err != nil {
		return nil, distErrorf("Zeros", err)
	}
	m.local = local

	return m, nil
}

// FromGlobal distributes a replicated dense matrix onto g. Every process
// passes the same a; non-members only read its shape.
func FromGlobal(g *Grid, a *matrix.Dense) (*Matrix, error) {
	if err := matrix.ValidateNotNil(a); err != nil {
		return nil, distErrorf("FromGlobal", err)
	}
	m, err := Zeros(g, a.Rows(), a.Cols())
	if err != nil || !m.Active() {
		return m, err
	}
	sub, err := a.Induced(m.RowIndices(), m.ColIndices())
	if err != nil {
		return nil, distErrorf("FromGlobal", err)
	}
	m.local = sub

	return m, nil
}

// Rows returns the global row count.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the global column count.
func (m *Matrix) Cols() int { return m.cols }

// Grid returns the process grid.
func (m *Matrix) Grid() *Grid { return m.grid }

// Active reports whether the caller holds local storage.
func (m *Matrix) Active() bool { return m.local != nil }

// Local returns the local tile (nil when inactive). Writes go straight to
// the distributed matrix.
func (m *Matrix) Local() *matrix.Dense { return m.local }

// RowIndices returns the global indices of the local rows, ascending.
func (m *Matrix) RowIndices() []int {
	if !m.Active() {
		return nil
	}
	idx := make([]int, m.local.Rows())
	for il := range idx {
		idx[il] = l2g(il, m.grid.mb, m.prow, m.grid.nprow)
	}

	return idx
}

// ColIndices returns the global indices of the local columns, ascending.
func (m *Matrix) ColIndices() []int {
	if !m.Active() {
		return nil
	}
	idx := make([]int, m.local.Cols())
	for jl := range idx {
		idx[jl] = l2g(jl, m.grid.nb, m.pcol, m.grid.npcol)
	}

	return idx
}

// owns reports whether the caller holds global (i, j).
func (m *Matrix) owns(i, j int) bool {
	return m.Active() &&
		owner(i, m.grid.mb, m.grid.nprow) == m.prow &&
		owner(j, m.grid.nb, m.grid.npcol) == m.pcol
}

// localIndex maps a global entry held by the caller to its local position.
func (m *Matrix) localIndex(i, j int) (il, jl int) {
	return g2l(i, m.grid.mb, m.grid.nprow), g2l(j, m.grid.nb, m.grid.npcol)
}

// GlobalAt returns entry (i, j) when the caller owns it.
func (m *Matrix) GlobalAt(i, j int) (v float64, ok bool) {
	if i < 0 || j < 0 || i >= m.rows || j >= m.cols || !m.owns(i, j) {
		return 0, false
	}
	il, jl := m.localIndex(i, j)
	v, _ = m.local.At(il, jl)

	return v, true
}

// AllGather assembles the global matrix on every grid member. Non-members
// get nil. Collective over the grid communicator.
func (m *Matrix) AllGather(ctx context.Context) (*matrix.Dense, error) {
	if !m.grid.Active() {
		return nil, nil
	}
	type tile struct {
		ri, ci []int
		data   *matrix.Dense
	}
	all, err := m.grid.comm.AllGather(ctx, tile{m.RowIndices(), m.ColIndices(), m.local})
	if err != nil {
		return nil, distErrorf("AllGather", err)
	}
	out, err := matrix.NewDense(m.rows, m.cols)
	if err != nil {
		return nil, distErrorf("AllGather", err)
	}
	raw, src := out.Raw(), []float64(nil)
	for _, x := range all {
		t := x.(tile)
		src = t.data.Raw()
		for il, i := range t.ri {
			for jl, j := range t.ci {
				raw[i*m.cols+j] = src[il*len(t.ci)+jl]
			}
		}
	}

	return out, nil
}

// AddInPlace performs dst += alpha·src on local tiles. Both must share grid
// and shape. No communication.
func AddInPlace(dst *Matrix, alpha float64, src *Matrix) error {
	if !dst.grid.Same(src.grid) {
		return distErrorf("AddInPlace", ErrGridMismatch)
	}
	if dst.rows != src.rows || dst.cols != src.cols {
		return distErrorf("AddInPlace", ErrDimensionMismatch)
	}
	if !dst.Active() {
		return nil
	}
	if err := matrix.AddInPlace(dst.local, alpha, src.local); err != nil {
		return distErrorf("AddInPlace", err)
	}

	return nil
}

// Gemm computes C = alpha·op(A)·op(B) + beta·C on a common grid and returns
// the flops performed by the caller. Members gather A and B and update their
// own tile of C; non-members return immediately. Collective over the grid.
func Gemm(ctx context.Context, ta, tb matrix.Op, alpha float64, a, b *Matrix, beta float64, c *Matrix) (int64, error) {
	if !a.grid.Same(c.grid) || !b.grid.Same(c.grid) {
		return 0, distErrorf("Gemm", ErrGridMismatch)
	}
	m, k := a.rows, a.cols
	if ta.Transposed() {
		m, k = k, m
	}
	kb, n := b.rows, b.cols
	if tb.Transposed() {
		kb, n = n, kb
	}
	if k != kb || m != c.rows || n != c.cols {
		return 0, distErrorf("Gemm", fmt.Errorf("op(A) %dx%d, op(B) %dx%d, C %dx%d: %w",
			m, k, kb, n, c.rows, c.cols, ErrDimensionMismatch))
	}
	if !c.grid.Active() {
		return 0, nil
	}
	ga, err := a.AllGather(ctx)
	if err != nil {
		return 0, distErrorf("Gemm", err)
	}
	gb, err := b.AllGather(ctx)
	if err != nil {
		return 0, distErrorf("Gemm", err)
	}
	ri, ci := c.RowIndices(), c.ColIndices()
	all := make([]int, k)
	for i := range all {
		all[i] = i
	}
	var sa, sb *matrix.Dense
	if ta.Transposed() {
		sa, err = ga.Induced(all, ri)
	} else {
		sa, err = ga.Induced(ri, all)
	}
	if err != nil {
		return 0, distErrorf("Gemm", err)
	}
	if tb.Transposed() {
		sb, err = gb.Induced(ci, all)
	} else {
		sb, err = gb.Induced(all, ci)
	}
	if err != nil {
		return 0, distErrorf("Gemm", err)
	}
	if err = matrix.Gemm(ta, tb, alpha, sa, sb, beta, c.local); err != nil {
		return 0, distErrorf("Gemm", err)
	}

	return flops.GemmFlops(len(ri), len(ci), k, beta), nil
}
