// SPDX-License-Identifier: MIT

// Package hssmpi: distributed apply engine.
//
// ApplyInto follows the same two passes as the shared-memory engine, with
// every block on the grid of its node:
//
//  1. the rows of B (and of C when β ≠ 0) each leaf reads are moved onto
//     the leaf grids in one exchange over the matrix communicator;
//  2. forward: leaves compute tmp1 = inᴴ·B_leaf; an internal node
//     redistributes its children's tmp1 onto its own grid as cat and, unless
//     it is the root, computes tmp1 = inᴴ·cat;
//  3. backward: an internal node forms y = out·tmp2 + op(K)·cat on its grid
//     (only op(K)·cat at the root or when out has rank 0), and scatters the
//     two row blocks of y into its children's tmp2; leaves compute
//     C_leaf = op(D)·B_leaf + β·C_leaf + out·tmp2;
//  4. the leaf results are moved back into C.
//
// Processes return early from nodes they do not belong to. Every collective
// runs over the communicator of the node that issues it, and all members of
// a node visit its subtree in the same order.
package hssmpi

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/katalvlaran/hss/comm"
	"github.com/katalvlaran/hss/distmat"
	"github.com/katalvlaran/hss/matrix"
)

// applyEngine carries the state of one apply call on one process.
type applyEngine struct {
	m     *Matrix
	o     orientation
	flops int64
}

// gemm runs distmat.Gemm on a node grid and accounts the caller's flops.
func (e *applyEngine) gemm(ctx context.Context, ta, tb matrix.Op, alpha float64, a, b *distmat.Matrix, beta float64, c *distmat.Matrix) error {
	f, err := distmat.Gemm(ctx, ta, tb, alpha, a, b, beta, c)
	e.flops += f

	return err
}

// Apply returns A·B, distributed on B's grid.
// Errors: see ApplyInto.
func (m *Matrix) Apply(ctx context.Context, b *distmat.Matrix) (*distmat.Matrix, error) {
	return m.applyNew(ctx, matrix.NoTrans, b)
}

// ApplyC returns Aᴴ·B, distributed on B's grid.
// Errors: see ApplyInto.
func (m *Matrix) ApplyC(ctx context.Context, b *distmat.Matrix) (*distmat.Matrix, error) {
	return m.applyNew(ctx, matrix.ConjTrans, b)
}

func (m *Matrix) applyNew(ctx context.Context, ta matrix.Op, b *distmat.Matrix) (*distmat.Matrix, error) {
	if b == nil {
		return nil, mpiErrorf("Apply", ErrNilTree)
	}
	rows := m.Rows()
	if ta.Transposed() {
		rows = m.Cols()
	}
	c, err := distmat.Zeros(b.Grid(), rows, b.Cols())
	if err != nil {
		return nil, mpiErrorf("Apply", err)
	}
	if _, err = m.ApplyInto(ctx, ta, b, 0, c); err != nil {
		return nil, err
	}

	return c, nil
}

func (m *Matrix) validateApply(ta matrix.Op, b, c *distmat.Matrix) error {
	if b == nil || c == nil {
		return ErrNilTree
	}
	rows, cols := m.Rows(), m.Cols()
	switch ta {
	case matrix.NoTrans:
	case matrix.Trans, matrix.ConjTrans:
		rows, cols = cols, rows
	default:
		return matrix.ErrUnknownOp
	}
	if b.Rows() != cols || c.Rows() != rows || c.Cols() != b.Cols() {
		return fmt.Errorf("op(A) %dx%d, B %dx%d, C %dx%d: %w",
			rows, cols, b.Rows(), b.Cols(), c.Rows(), c.Cols(), ErrDimensionMismatch)
	}

	return nil
}

// ApplyInto computes C = op(A)·B + β·C and returns the flops spent by the
// calling process. B and C may live on any grids whose ranks lie in Comm;
// every member of Comm must call ApplyInto with the same arguments.
//
// Errors: ErrNilTree, matrix.ErrUnknownOp, ErrDimensionMismatch (before any
// communication), ErrInconsistent, distmat.ErrNotCovered, context errors.
func (m *Matrix) ApplyInto(ctx context.Context, ta matrix.Op, b *distmat.Matrix, beta float64, c *distmat.Matrix) (int64, error) {
	if err := m.validateApply(ta, b, c); err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}
	if err := m.agree(ctx, m.comm, m.callHash(byte(ta),
		uint64(b.Rows()), uint64(b.Cols()), uint64(c.Cols()), math.Float64bits(beta))); err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}
	e := &applyEngine{m: m, o: orientation{adjoint: ta.Transposed()}}
	w, err := newWorkApply(m.root, e.o, b.Cols())
	if err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}

	in := scatter(b, w.leaves(m.root, func(w *workApply) *distmat.Matrix { return w.b }, nil), e.o.inRange, nil)
	outs := w.leaves(m.root, func(w *workApply) *distmat.Matrix { return w.c }, nil)
	if beta != 0 {
		in = scatter(c, outs, e.o.outRange, in)
	}
	if err = distmat.Redistribute(ctx, m.comm, in...); err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}
	if err = e.forward(ctx, m.root, w, true); err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}
	if err = e.backward(ctx, m.root, w, beta, true); err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}
	if err = distmat.Redistribute(ctx, m.comm, gather(outs, c, e.o.outRange, nil)...); err != nil {
		return 0, mpiErrorf("ApplyInto", err)
	}
	m.opts.Logger.Debug("hssmpi apply",
		"rank", m.comm.Rank(), "op", ta.String(), "nrhs", b.Cols(), "flops", e.flops)

	return e.flops, nil
}

func (e *applyEngine) forward(ctx context.Context, n *node, w *workApply, isroot bool) error {
	if !n.grid.Active() {
		return nil
	}
	if n.leaf() {
		if isroot {
			return nil
		}
		return e.gemm(ctx, matrix.ConjTrans, matrix.NoTrans, 1, e.o.in(n), w.b, 0, w.tmp1)
	}
	if err := e.forward(ctx, n.ch[0], w.ch[0], false); err != nil {
		return err
	}
	if err := e.forward(ctx, n.ch[1], w.ch[1], false); err != nil {
		return err
	}
	t0, t1 := w.ch[0].tmp1, w.ch[1].tmp1
	if err := distmat.Redistribute(ctx, n.grid.Comm(),
		distmat.Copy{Src: t0, Dst: w.cat, Rows: t0.Rows(), Cols: t0.Cols()},
		distmat.Copy{Src: t1, Dst: w.cat, DstRow: t0.Rows(), Rows: t1.Rows(), Cols: t1.Cols()},
	); err != nil {
		return err
	}
	if isroot {
		return nil
	}

	return e.gemm(ctx, matrix.ConjTrans, matrix.NoTrans, 1, e.o.in(n), w.cat, 0, w.tmp1)
}

func (e *applyEngine) backward(ctx context.Context, n *node, w *workApply, beta float64, isroot bool) error {
	if !n.grid.Active() {
		return nil
	}
	out := e.o.out(n)
	if n.leaf() {
		if err := e.gemm(ctx, e.o.diag(), matrix.NoTrans, 1, n.d, w.b, beta, w.c); err != nil {
			return err
		}
		if !isroot && out.Cols() > 0 {
			return e.gemm(ctx, matrix.NoTrans, matrix.NoTrans, 1, out, w.tmp2, 1, w.c)
		}
		return nil
	}

	couplingOnly := isroot || out.Cols() == 0
	if err := e.m.agreeBranch(ctx, n, couplingOnly); err != nil {
		return err
	}
	d0, d1 := w.ch[0].tmp2, w.ch[1].tmp2
	y, err := distmat.Zeros(n.grid, d0.Rows()+d1.Rows(), w.cat.Cols())
	if err != nil {
		return err
	}
	kbeta := 0.0
	if !couplingOnly {
		if err = e.gemm(ctx, matrix.NoTrans, matrix.NoTrans, 1, out, w.tmp2, 0, y); err != nil {
			return err
		}
		kbeta = 1
	}
	if err = e.gemm(ctx, e.o.coupling(), matrix.NoTrans, 1, n.k, w.cat, kbeta, y); err != nil {
		return err
	}
	if err = distmat.Redistribute(ctx, n.grid.Comm(),
		distmat.Copy{Src: y, Dst: d0, Rows: d0.Rows(), Cols: d0.Cols()},
		distmat.Copy{Src: y, SrcRow: d0.Rows(), Dst: d1, Rows: d1.Rows(), Cols: d1.Cols()},
	); err != nil {
		return err
	}
	if err = e.backward(ctx, n.ch[0], w.ch[0], beta, false); err != nil {
		return err
	}

	return e.backward(ctx, n.ch[1], w.ch[1], beta, false)
}

// callHash binds the tree fingerprint to the arguments of one call.
func (m *Matrix) callHash(op byte, args ...uint64) uint64 {
	var buf [8]byte
	d := xxhash.New()
	for _, x := range append([]uint64{m.fingerprint, uint64(op)}, args...) {
		binary.LittleEndian.PutUint64(buf[:], x)
		_, _ = d.Write(buf[:])
	}

	return d.Sum64()
}

// agree turns a disagreement among the members of c into ErrInconsistent.
func (m *Matrix) agree(ctx context.Context, c *comm.Comm, v uint64) error {
	if !m.opts.ConsistencyCheck {
		return nil
	}
	err := c.Agree(ctx, v)
	if errors.Is(err, comm.ErrDisagreement) {
		return fmt.Errorf("%w: %w", ErrInconsistent, err)
	}

	return err
}

// agreeBranch checks that all members of a node take the same path.
func (m *Matrix) agreeBranch(ctx context.Context, n *node, couplingOnly bool) error {
	v := uint64(n.grid.Lo())<<33 | uint64(n.grid.Size())<<1
	if couplingOnly {
		v |= 1
	}

	return m.agree(ctx, n.grid.Comm(), v)
}
