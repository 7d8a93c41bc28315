// SPDX-License-Identifier: MIT

// Package hssmpi: distributed hierarchical factorization and solve.
//
// The elimination is the same Sherman-Morrison-Woodbury recursion as the
// shared-memory one. The tall operands live on the node grids:
//
//	W = diag(A_α⁻¹Ũ_α, A_β⁻¹Ũ_β)   rows × (r_α + r_β)
//	Y = diag(Ṽ_α, Ṽ_β)             cols × (s_α + s_β)
//
// and are assembled by redistributing the children's results. The coupling
// system S = I + K·Yᴴ·W has the order of the summed ranks; it is gathered
// and factored redundantly by the members of the node, as are leaf blocks.
package hssmpi

import (
	"context"
	"fmt"

	"github.com/katalvlaran/hss/distmat"
	"github.com/katalvlaran/hss/flops"
	"github.com/katalvlaran/hss/hss"
	"github.com/katalvlaran/hss/matrix"
)

// Factorization is the opaque result of Factor on one process.
type Factorization struct {
	m            *Matrix
	root         *factorNode
	nearSingular bool
}

// factorNode mirrors one tree node. On processes outside the node only the
// shapes of ainvU and vt are meaningful.
type factorNode struct {
	lu        *matrix.LU      // leaf: LU(D); internal: LU(S); replicated on members
	ainvU, vt *distmat.Matrix // A⁻¹·Ũ and Ṽ on the node grid (nil at the root)
	w, y      *distmat.Matrix // internal only
	ch        [2]*factorNode
}

// NearSingular reports whether any process met a pivot ratio below the
// threshold. All processes return the same value.
func (f *Factorization) NearSingular() bool { return f.nearSingular }

type factorEngine struct {
	m        *Matrix
	ulv      int64
	schur    int64
	singular bool
}

func (e *factorEngine) lu(a *matrix.Dense, where string) (*matrix.LU, error) {
	f, err := matrix.Factorize(a)
	if err != nil {
		return nil, err
	}
	e.ulv += flops.LUFlops(a.Rows())
	if ratio := f.PivotRatio(); f.Singular() || ratio < e.m.opts.PivotThreshold {
		e.singular = true
		e.m.opts.Logger.Warn("hssmpi factor: near-singular pivot",
			"rank", e.m.comm.Rank(), "block", where, "order", a.Rows(), "pivot_ratio", ratio)
	}

	return f, nil
}

func (e *factorEngine) gemm(ctx context.Context, ta, tb matrix.Op, a, b, c *distmat.Matrix) error {
	f, err := distmat.Gemm(ctx, ta, tb, 1, a, b, 0, c)
	e.schur += f

	return err
}

// Factor computes the distributed factorization. Collective over Comm.
// Errors: hss.ErrNonSquare, ErrInconsistent, context errors.
func (m *Matrix) Factor(ctx context.Context) (*Factorization, error) {
	if err := checkSquare(m.tree); err != nil {
		return nil, mpiErrorf("Factor", err)
	}
	if err := m.agree(ctx, m.comm, m.callHash('F')); err != nil {
		return nil, mpiErrorf("Factor", err)
	}
	e := &factorEngine{m: m}
	root, err := e.factor(ctx, m.root, true)
	if err != nil {
		return nil, mpiErrorf("Factor", err)
	}
	flag := 0.0
	if e.singular {
		flag = 1
	}
	flagged, err := m.comm.AllReduceSum(ctx, []float64{flag})
	if err != nil {
		return nil, mpiErrorf("Factor", err)
	}
	m.opts.Counters.Add(flops.ULVFactor, e.ulv)
	m.opts.Counters.Add(flops.Schur, e.schur)
	m.opts.Logger.Debug("hssmpi factor",
		"rank", m.comm.Rank(), "ulv_flops", e.ulv, "schur_flops", e.schur, "near_singular", flagged[0] > 0)

	return &Factorization{m: m, root: root, nearSingular: flagged[0] > 0}, nil
}

func checkSquare(h *hss.Matrix) error {
	if h.Rows() != h.Cols() {
		return fmt.Errorf("node %dx%d: %w", h.Rows(), h.Cols(), hss.ErrNonSquare)
	}
	if h.Leaf() {
		return nil
	}
	if err := checkSquare(h.Child(0)); err != nil {
		return err
	}

	return checkSquare(h.Child(1))
}

// inactive returns a node whose handles only carry shapes.
func inactive(n *node) (*factorNode, error) {
	fn := &factorNode{}
	var err error
	if fn.ainvU, err = distmat.Zeros(n.grid, n.h.Rows(), n.h.URank()); err != nil {
		return nil, err
	}
	if fn.vt, err = distmat.Zeros(n.grid, n.h.Cols(), n.h.VRank()); err != nil {
		return nil, err
	}

	return fn, nil
}

func (e *factorEngine) factor(ctx context.Context, n *node, isroot bool) (*factorNode, error) {
	if !n.grid.Active() {
		return inactive(n)
	}
	if n.leaf() {
		return e.factorLeaf(ctx, n, isroot)
	}
	f0, err := e.factor(ctx, n.ch[0], false)
	if err != nil {
		return nil, err
	}
	f1, err := e.factor(ctx, n.ch[1], false)
	if err != nil {
		return nil, err
	}
	fn := &factorNode{ch: [2]*factorNode{f0, f1}}
	h, c0 := n.h, n.h.Child(0)
	r0, r := f0.ainvU.Cols(), f0.ainvU.Cols()+f1.ainvU.Cols()
	s0, s := f0.vt.Cols(), f0.vt.Cols()+f1.vt.Cols()
	if fn.w, err = distmat.Zeros(n.grid, h.Rows(), r); err != nil {
		return nil, err
	}
	if fn.y, err = distmat.Zeros(n.grid, h.Cols(), s); err != nil {
		return nil, err
	}
	if err = distmat.Redistribute(ctx, n.grid.Comm(),
		distmat.Copy{Src: f0.ainvU, Dst: fn.w, Rows: c0.Rows(), Cols: r0},
		distmat.Copy{Src: f1.ainvU, Dst: fn.w, DstRow: c0.Rows(), DstCol: r0, Rows: f1.ainvU.Rows(), Cols: r - r0},
		distmat.Copy{Src: f0.vt, Dst: fn.y, Rows: c0.Cols(), Cols: s0},
		distmat.Copy{Src: f1.vt, Dst: fn.y, DstRow: c0.Cols(), DstCol: s0, Rows: f1.vt.Rows(), Cols: s - s0},
	); err != nil {
		return nil, err
	}

	// S = I + K·(Yᴴ·W)
	g, err := distmat.Zeros(n.grid, s, r)
	if err != nil {
		return nil, err
	}
	if err = e.gemm(ctx, matrix.ConjTrans, matrix.NoTrans, fn.y, fn.w, g); err != nil {
		return nil, err
	}
	kg, err := distmat.Zeros(n.grid, r, r)
	if err != nil {
		return nil, err
	}
	if err = e.gemm(ctx, matrix.NoTrans, matrix.NoTrans, n.k, g, kg); err != nil {
		return nil, err
	}
	kgg, err := kg.AllGather(ctx)
	if err != nil {
		return nil, err
	}
	sys := kgg.Copy()
	addIdentity(sys)
	if fn.lu, err = e.lu(sys, "coupling"); err != nil {
		return nil, err
	}
	if isroot {
		return fn, nil
	}

	// A⁻¹Ũ = W·(U − S⁻¹·K·Yᴴ·W·U), Ṽ = Y·V
	ug, err := n.u.AllGather(ctx)
	if err != nil {
		return nil, err
	}
	z, err := matrix.Mul(kgg, ug)
	if err != nil {
		return nil, err
	}
	if err = fn.lu.Solve(z); err != nil {
		return nil, err
	}
	e.schur += flops.GemmFlops(r, ug.Cols(), r, 0) + flops.LUSolveFlops(r, ug.Cols())
	q, err := matrix.Sub(ug, z)
	if err != nil {
		return nil, err
	}
	qd, err := distmat.FromGlobal(n.grid, q)
	if err != nil {
		return nil, err
	}
	if fn.ainvU, err = distmat.Zeros(n.grid, h.Rows(), h.URank()); err != nil {
		return nil, err
	}
	if err = e.gemm(ctx, matrix.NoTrans, matrix.NoTrans, fn.w, qd, fn.ainvU); err != nil {
		return nil, err
	}
	if fn.vt, err = distmat.Zeros(n.grid, h.Cols(), h.VRank()); err != nil {
		return nil, err
	}
	if err = e.gemm(ctx, matrix.NoTrans, matrix.NoTrans, fn.y, n.v, fn.vt); err != nil {
		return nil, err
	}

	return fn, nil
}

func (e *factorEngine) factorLeaf(ctx context.Context, n *node, isroot bool) (*factorNode, error) {
	d, err := n.d.AllGather(ctx)
	if err != nil {
		return nil, err
	}
	fn := &factorNode{}
	if fn.lu, err = e.lu(d, "leaf"); err != nil {
		return nil, err
	}
	if isroot {
		return fn, nil
	}
	u, err := n.u.AllGather(ctx)
	if err != nil {
		return nil, err
	}
	if err = fn.lu.Solve(u); err != nil {
		return nil, err
	}
	e.schur += flops.LUSolveFlops(u.Rows(), u.Cols())
	if fn.ainvU, err = distmat.FromGlobal(n.grid, u); err != nil {
		return nil, err
	}
	fn.vt = n.v

	return fn, nil
}

func addIdentity(s *matrix.Dense) {
	raw, n := s.Raw(), s.Rows()
	for i := 0; i < n; i++ {
		raw[i*n+i]++
	}
}

// Solve overwrites X with A⁻¹·X. X may live on any grid whose ranks lie in
// Comm. Collective over Comm.
// Errors: ErrNilTree, ErrFactorMismatch, ErrDimensionMismatch,
// ErrInconsistent, context errors.
func (m *Matrix) Solve(ctx context.Context, f *Factorization, x *distmat.Matrix) error {
	if f == nil || x == nil {
		return mpiErrorf("Solve", ErrNilTree)
	}
	if f.m != m {
		return mpiErrorf("Solve", ErrFactorMismatch)
	}
	if x.Rows() != m.Rows() {
		return mpiErrorf("Solve", fmt.Errorf("A %dx%d, X %dx%d: %w",
			m.Rows(), m.Cols(), x.Rows(), x.Cols(), ErrDimensionMismatch))
	}
	if err := m.agree(ctx, m.comm, m.callHash('S', uint64(x.Cols()))); err != nil {
		return mpiErrorf("Solve", err)
	}
	w, err := newWorkSolve(m.root, x.Cols())
	if err != nil {
		return mpiErrorf("Solve", err)
	}
	byRows := func(n *node) (int, int) { return n.rowOff, n.h.Rows() }
	if err = distmat.Redistribute(ctx, m.comm, scatter(x, w.leaves(m.root, nil), byRows, nil)...); err != nil {
		return mpiErrorf("Solve", err)
	}
	var spent int64
	if err = solve(ctx, m.root, f.root, w, &spent); err != nil {
		return mpiErrorf("Solve", err)
	}
	if err = distmat.Redistribute(ctx, m.comm,
		distmat.Copy{Src: w.y, Dst: x, Rows: x.Rows(), Cols: x.Cols()}); err != nil {
		return mpiErrorf("Solve", err)
	}
	m.opts.Logger.Debug("hssmpi solve", "rank", m.comm.Rank(), "nrhs", x.Cols(), "flops", spent)

	return nil
}

// workSolve holds the running solution of one node on its grid.
type workSolve struct {
	y  *distmat.Matrix
	ch [2]*workSolve
}

func newWorkSolve(n *node, nrhs int) (*workSolve, error) {
	y, err := distmat.Zeros(n.grid, n.h.Rows(), nrhs)
	if err != nil {
		return nil, err
	}
	w := &workSolve{y: y}
	if n.leaf() {
		return w, nil
	}
	for i := range w.ch {
		if w.ch[i], err = newWorkSolve(n.ch[i], nrhs); err != nil {
			return nil, err
		}
	}

	return w, nil
}

func (w *workSolve) leaves(n *node, out []leafSlot) []leafSlot {
	if n.leaf() {
		return append(out, leafSlot{n: n, buf: w.y})
	}
	out = w.ch[0].leaves(n.ch[0], out)

	return w.ch[1].leaves(n.ch[1], out)
}

// solve leaves A_node⁻¹·x in w.y on the members of n.
func solve(ctx context.Context, n *node, fn *factorNode, w *workSolve, spent *int64) error {
	if !n.grid.Active() {
		return nil
	}
	nrhs := w.y.Cols()
	if n.leaf() {
		*spent += flops.LUSolveFlops(n.h.Rows(), nrhs)
		return luSolve(ctx, fn.lu, w.y)
	}
	if err := solve(ctx, n.ch[0], fn.ch[0], w.ch[0], spent); err != nil {
		return err
	}
	if err := solve(ctx, n.ch[1], fn.ch[1], w.ch[1], spent); err != nil {
		return err
	}
	y0, y1 := w.ch[0].y, w.ch[1].y
	if err := distmat.Redistribute(ctx, n.grid.Comm(),
		distmat.Copy{Src: y0, Dst: w.y, Rows: y0.Rows(), Cols: nrhs},
		distmat.Copy{Src: y1, Dst: w.y, DstRow: y0.Rows(), Rows: y1.Rows(), Cols: nrhs},
	); err != nil {
		return err
	}

	// z = S⁻¹·K·Yᴴ·y, then y −= W·z
	hy, err := distmat.Zeros(n.grid, fn.y.Cols(), nrhs)
	if err != nil {
		return err
	}
	f, err := distmat.Gemm(ctx, matrix.ConjTrans, matrix.NoTrans, 1, fn.y, w.y, 0, hy)
	if err != nil {
		return err
	}
	*spent += f
	z, err := distmat.Zeros(n.grid, fn.w.Cols(), nrhs)
	if err != nil {
		return err
	}
	if f, err = distmat.Gemm(ctx, matrix.NoTrans, matrix.NoTrans, 1, n.k, hy, 0, z); err != nil {
		return err
	}
	*spent += f + flops.LUSolveFlops(z.Rows(), nrhs)
	if err = luSolve(ctx, fn.lu, z); err != nil {
		return err
	}
	f, err = distmat.Gemm(ctx, matrix.NoTrans, matrix.NoTrans, -1, fn.w, z, 1, w.y)
	*spent += f

	return err
}

// luSolve overwrites the distributed x with lu⁻¹·x: the members gather x,
// solve redundantly and keep their own tile.
func luSolve(ctx context.Context, lu *matrix.LU, x *distmat.Matrix) error {
	g, err := x.AllGather(ctx)
	if err != nil {
		return err
	}
	if err = lu.Solve(g); err != nil {
		return err
	}
	tile, err := g.Induced(x.RowIndices(), x.ColIndices())
	if err != nil {
		return err
	}
	copy(x.Local().Raw(), tile.Raw())

	return nil
}
