// SPDX-License-Identifier: MIT

// Package hss: hierarchical factorization and solve.
//
// The factorization eliminates the tree bottom-up with the Sherman-Morrison-
// Woodbury identity. For an internal node τ with children α, β:
//
//	A_τ = diag(A_α, A_β) + diag(Ũ_α, Ũ_β)·K·Yᴴ,   K = [0 B01; B10 0],
//	Y   = diag(Ṽ_α, Ṽ_β),   W = diag(A_α⁻¹Ũ_α, A_β⁻¹Ũ_β),
//	S   = I + K·(Yᴴ·W),
//	A_τ⁻¹ = diag(A_α⁻¹, A_β⁻¹) − W·S⁻¹·K·Yᴴ·diag(A_α⁻¹, A_β⁻¹).
//
// Each node keeps the LU of S (of order rank_α + rank_β) plus A_τ⁻¹Ũ_τ and Ṽ_τ
// for its parent; leaves keep the LU of D. Solve runs the children first and
// then applies the rank correction, the same bottom-up shape as the forward
// pass of apply.
package hss

import (
	"fmt"
	"sync/atomic"

	"github.com/katalvlaran/hss/flops"
	"github.com/katalvlaran/hss/matrix"
)

// Factorization is the opaque result of Factor.
type Factorization struct {
	tree         *Matrix
	root         *factorNode
	nearSingular bool
}

// factorNode mirrors one tree node.
type factorNode struct {
	lu    *matrix.LU    // leaf: LU(D); internal: LU(S)
	ainvU *matrix.Dense // A⁻¹·Ũ, rows×URank (nil at the root)
	vt    *matrix.Dense // Ṽ, cols×VRank (nil at the root)
	yw    *matrix.Dense // internal: Yᴴ·W, block diagonal
	ch    [2]*factorNode
}

// NearSingular reports whether any LU met a pivot ratio below the threshold.
// Solve still proceeds; callers should check the residual.
func (f *Factorization) NearSingular() bool { return f.nearSingular }

// factorEngine carries the state of one Factor call.
type factorEngine struct {
	opts     Options
	ulv      atomic.Int64
	schur    atomic.Int64
	singular atomic.Bool
}

// Factor computes the hierarchical factorization of a square tree.
// Errors: ErrNonSquare when any node is not square.
func (h *Matrix) Factor(opts ...Option) (*Factorization, error) {
	if err := h.checkSquare(); err != nil {
		return nil, hssErrorf("Factor", err)
	}
	e := &factorEngine{opts: NewOptions(opts...)}
	root, err := e.factor(h, true, 0)
	if err != nil {
		return nil, hssErrorf("Factor", err)
	}
	e.opts.Counters.Add(flops.ULVFactor, e.ulv.Load())
	e.opts.Counters.Add(flops.Schur, e.schur.Load())
	f := &Factorization{tree: h, root: root, nearSingular: e.singular.Load()}
	e.opts.Logger.Debug("hss factor",
		"rows", h.rows, "levels", h.Levels(), "max_rank", h.MaxRank(),
		"ulv_flops", e.ulv.Load(), "schur_flops", e.schur.Load(), "near_singular", f.nearSingular)

	return f, nil
}

func (h *Matrix) checkSquare() error {
	if h.rows != h.cols {
		return fmt.Errorf("node %dx%d: %w", h.rows, h.cols, ErrNonSquare)
	}
	if h.Leaf() {
		return nil
	}
	if err := h.ch[0].checkSquare(); err != nil {
		return err
	}

	return h.ch[1].checkSquare()
}

// lu factorizes a and flags near-singular pivots.
func (e *factorEngine) lu(a *matrix.Dense, where string) (*matrix.LU, error) {
	f, err := matrix.Factorize(a)
	if err != nil {
		return nil, err
	}
	e.ulv.Add(flops.LUFlops(a.Rows()))
	if ratio := f.PivotRatio(); f.Singular() || ratio < e.opts.PivotThreshold {
		e.singular.Store(true)
		e.opts.Logger.Warn("hss factor: near-singular pivot",
			"block", where, "order", a.Rows(), "pivot_ratio", ratio)
	}

	return f, nil
}

func (e *factorEngine) mul(ta, tb matrix.Op, a, b *matrix.Dense) (*matrix.Dense, error) {
	c, err := matrix.MulOp(ta, tb, a, b)
	if err != nil {
		return nil, err
	}
	k := a.Cols()
	if ta.Transposed() {
		k = a.Rows()
	}
	e.schur.Add(flops.GemmFlops(c.Rows(), c.Cols(), k, 0))

	return c, nil
}

func (e *factorEngine) factor(h *Matrix, isroot bool, depth int) (*factorNode, error) {
	if h.Leaf() {
		return e.factorLeaf(h, isroot)
	}
	var f0, f1 *factorNode
	if err := fork(depth, e.opts.TaskDepth,
		func() (err error) { f0, err = e.factor(h.ch[0], false, depth+1); return err },
		func() (err error) { f1, err = e.factor(h.ch[1], false, depth+1); return err },
	); err != nil {
		return nil, err
	}
	fn := &factorNode{ch: [2]*factorNode{f0, f1}}

	// Yᴴ·W is block diagonal: diag(Ṽ_αᴴ·A_α⁻¹Ũ_α, Ṽ_βᴴ·A_β⁻¹Ũ_β).
	g0, err := e.mul(matrix.ConjTrans, matrix.NoTrans, f0.vt, f0.ainvU)
	if err != nil {
		return nil, err
	}
	g1, err := e.mul(matrix.ConjTrans, matrix.NoTrans, f1.vt, f1.ainvU)
	if err != nil {
		return nil, err
	}
	if fn.yw, err = blockDiag(g0, g1); err != nil {
		return nil, err
	}
	k, err := h.Coupling()
	if err != nil {
		return nil, err
	}
	s, err := e.mul(matrix.NoTrans, matrix.NoTrans, k, fn.yw)
	if err != nil {
		return nil, err
	}
	addIdentity(s)
	if fn.lu, err = e.lu(s, "coupling"); err != nil {
		return nil, err
	}
	if isroot {
		return fn, nil
	}

	// A_τ⁻¹Ũ_τ = W·(U − S⁻¹·K·(YᴴW)·U), Ṽ_τ = Y·V.
	if fn.ainvU, err = e.ainvU(h, fn, k); err != nil {
		return nil, err
	}
	if fn.vt, err = e.nested(f0.vt, f1.vt, h.v); err != nil {
		return nil, err
	}

	return fn, nil
}

func (e *factorEngine) factorLeaf(h *Matrix, isroot bool) (*factorNode, error) {
	lu, err := e.lu(h.d, "leaf")
	if err != nil {
		return nil, err
	}
	fn := &factorNode{lu: lu}
	if isroot {
		return fn, nil
	}
	fn.ainvU = h.u.Copy()
	if err = lu.Solve(fn.ainvU); err != nil {
		return nil, err
	}
	e.schur.Add(flops.LUSolveFlops(h.rows, h.URank()))
	fn.vt = h.v

	return fn, nil
}

func (e *factorEngine) ainvU(h *Matrix, fn *factorNode, k *matrix.Dense) (*matrix.Dense, error) {
	t, err := e.mul(matrix.NoTrans, matrix.NoTrans, fn.yw, h.u)
	if err != nil {
		return nil, err
	}
	z, err := e.mul(matrix.NoTrans, matrix.NoTrans, k, t)
	if err != nil {
		return nil, err
	}
	if err = fn.lu.Solve(z); err != nil {
		return nil, err
	}
	q, err := matrix.Sub(h.u, z)
	if err != nil {
		return nil, err
	}

	return e.nested(fn.ch[0].ainvU, fn.ch[1].ainvU, q)
}

// nested returns diag(b0, b1)·g.
func (e *factorEngine) nested(b0, b1, g *matrix.Dense) (*matrix.Dense, error) {
	res, err := nestBasis(b0, b1, g)
	if err != nil {
		return nil, err
	}
	e.schur.Add(flops.GemmFlops(b0.Rows(), g.Cols(), b0.Cols(), 0) +
		flops.GemmFlops(b1.Rows(), g.Cols(), b1.Cols(), 0))

	return res, nil
}

// Coupling assembles K = [0 B01; B10 0], (r0+r1)×(s0+s1), for an internal
// node. The off-diagonal part of the node is diag(Ũ0, Ũ1)·K·diag(Ṽ0, Ṽ1)ᴴ.
// Errors: ErrNilNode for leaves.
func (h *Matrix) Coupling() (*matrix.Dense, error) {
	if h.Leaf() {
		return nil, hssErrorf("Coupling", ErrNilNode)
	}
	c0, c1 := h.ch[0], h.ch[1]
	k, err := matrix.NewDense(c0.URank()+c1.URank(), c0.VRank()+c1.VRank())
	if err != nil {
		return nil, err
	}
	if err = matrix.CopyBlock(c0.URank(), c1.VRank(), h.b01, 0, 0, k, 0, c0.VRank()); err != nil {
		return nil, err
	}
	if err = matrix.CopyBlock(c1.URank(), c0.VRank(), h.b10, 0, 0, k, c0.URank(), 0); err != nil {
		return nil, err
	}

	return k, nil
}

// blockDiag returns diag(a, b).
func blockDiag(a, b *matrix.Dense) (*matrix.Dense, error) {
	res, err := matrix.NewDense(a.Rows()+b.Rows(), a.Cols()+b.Cols())
	if err != nil {
		return nil, err
	}
	if err = matrix.CopyBlock(a.Rows(), a.Cols(), a, 0, 0, res, 0, 0); err != nil {
		return nil, err
	}
	if err = matrix.CopyBlock(b.Rows(), b.Cols(), b, 0, 0, res, a.Rows(), a.Cols()); err != nil {
		return nil, err
	}

	return res, nil
}

func addIdentity(s *matrix.Dense) {
	raw, n := s.Raw(), s.Rows()
	for i := 0; i < n; i++ {
		raw[i*n+i]++
	}
}

// Solve overwrites X with A⁻¹·X using a factorization of h.
// Errors: ErrNilNode, ErrFactorMismatch, ErrDimensionMismatch.
func (h *Matrix) Solve(f *Factorization, x *matrix.Dense, opts ...Option) error {
	if f == nil || x == nil {
		return hssErrorf("Solve", ErrNilNode)
	}
	if f.tree != h {
		return hssErrorf("Solve", ErrFactorMismatch)
	}
	if x.Rows() != h.rows {
		return hssErrorf("Solve", fmt.Errorf("A %dx%d, X %dx%d: %w", h.rows, h.cols, x.Rows(), x.Cols(), ErrDimensionMismatch))
	}
	o := NewOptions(opts...)
	var spent atomic.Int64
	if err := solve(h, f.root, x, &spent, o.TaskDepth, 0); err != nil {
		return hssErrorf("Solve", err)
	}
	o.Logger.Debug("hss solve", "rows", h.rows, "nrhs", x.Cols(), "flops", spent.Load())

	return nil
}

// solve overwrites x (the node's row window) with A_node⁻¹·x.
func solve(h *Matrix, fn *factorNode, x *matrix.Dense, spent *atomic.Int64, taskDepth, depth int) error {
	nrhs := x.Cols()
	if h.Leaf() {
		spent.Add(flops.LUSolveFlops(h.rows, nrhs))
		return fn.lu.Solve(x)
	}
	c0, c1 := h.ch[0], h.ch[1]
	x0, err := x.RowView(0, c0.rows)
	if err != nil {
		return err
	}
	x1, err := x.RowView(c0.rows, c1.rows)
	if err != nil {
		return err
	}
	if err = fork(depth, taskDepth,
		func() error { return solve(c0, fn.ch[0], x0, spent, taskDepth, depth+1) },
		func() error { return solve(c1, fn.ch[1], x1, spent, taskDepth, depth+1) },
	); err != nil {
		return err
	}

	// z = S⁻¹·K·Yᴴ·y, then y −= W·z
	f0, f1 := fn.ch[0], fn.ch[1]
	h0, err := matrix.MulOp(matrix.ConjTrans, matrix.NoTrans, f0.vt, x0)
	if err != nil {
		return err
	}
	h1, err := matrix.MulOp(matrix.ConjTrans, matrix.NoTrans, f1.vt, x1)
	if err != nil {
		return err
	}
	hy, err := matrix.VConcat(h0, h1)
	if err != nil {
		return err
	}
	k, err := h.Coupling()
	if err != nil {
		return err
	}
	z, err := matrix.Mul(k, hy)
	if err != nil {
		return err
	}
	if err = fn.lu.Solve(z); err != nil {
		return err
	}
	r0 := c0.URank()
	z0, err := z.RowView(0, r0)
	if err != nil {
		return err
	}
	z1, err := z.RowView(r0, c1.URank())
	if err != nil {
		return err
	}
	if err = matrix.Gemm(matrix.NoTrans, matrix.NoTrans, -1, f0.ainvU, z0, 1, x0); err != nil {
		return err
	}
	if err = matrix.Gemm(matrix.NoTrans, matrix.NoTrans, -1, f1.ainvU, z1, 1, x1); err != nil {
		return err
	}
	spent.Add(flops.GemmFlops(hy.Rows(), nrhs, c0.rows, 0) + flops.GemmFlops(z.Rows(), nrhs, hy.Rows(), 0) +
		flops.LUSolveFlops(z.Rows(), nrhs) + flops.GemmFlops(h.rows, nrhs, r0+c1.URank(), 1))

	return nil
}
