// SPDX-License-Identifier: MIT

// Package hss: shared-memory apply engine.
//
// C = β·C + op(A)·B runs in two passes over the tree:
//
//   - forward (post-order): every non-root node compresses its slice of B
//     into tmp1 = inᴴ·B_slice at a leaf, or inᴴ·[c0.tmp1; c1.tmp1] above;
//   - backward (pre-order): every internal node hands each child the
//     correction tmp2 = coupling·sibling.tmp1 (+ the node's own tmp2 expanded
//     through out when the node is not the root and has rank > 0); leaves
//     write C_slice = op(D)·B_slice + β·C_slice (+ out·tmp2).
//
// Both children of a node are independent; they run as errgroup tasks while
// the depth is below the task cutoff and inline beyond. Leaves write
// disjoint row windows of C, so no locking is needed. Every node performs
// its products in the same order regardless of scheduling, so the result is
// bitwise independent of the cutoff.
package hss

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/katalvlaran/hss/flops"
	"github.com/katalvlaran/hss/matrix"
)

// applyEngine carries the state of one apply call.
type applyEngine struct {
	o         orientation
	taskDepth int
	flops     atomic.Int64
}

// gemm runs matrix.Gemm and accounts its flops.
func (e *applyEngine) gemm(ta, tb matrix.Op, alpha float64, a, b *matrix.Dense, beta float64, c *matrix.Dense) error {
	if err := matrix.Gemm(ta, tb, alpha, a, b, beta, c); err != nil {
		return err
	}
	_, k := a.Shape()
	if ta.Transposed() {
		k = a.Rows()
	}
	e.flops.Add(flops.GemmFlops(c.Rows(), c.Cols(), k, beta))

	return nil
}

// fork runs f0 and f1, concurrently while depth < taskDepth.
func fork(depth, taskDepth int, f0, f1 func() error) error {
	if depth >= taskDepth {
		if err := f0(); err != nil {
			return err
		}
		return f1()
	}
	var g errgroup.Group
	g.Go(f0)
	g.Go(f1)

	return g.Wait()
}

// Apply returns A·B.
// Errors: ErrNilNode, ErrDimensionMismatch (B.Rows != A.Cols).
func (h *Matrix) Apply(b *matrix.Dense, opts ...Option) (*matrix.Dense, error) {
	return h.applyNew(matrix.NoTrans, b, opts)
}

// ApplyC returns Aᴴ·B.
// Errors: ErrNilNode, ErrDimensionMismatch (B.Rows != A.Rows).
func (h *Matrix) ApplyC(b *matrix.Dense, opts ...Option) (*matrix.Dense, error) {
	return h.applyNew(matrix.ConjTrans, b, opts)
}

func (h *Matrix) applyNew(ta matrix.Op, b *matrix.Dense, opts []Option) (*matrix.Dense, error) {
	if b == nil {
		return nil, hssErrorf("Apply", ErrNilNode)
	}
	rows := h.rows
	if ta.Transposed() {
		rows = h.cols
	}
	c, err := matrix.NewDense(rows, b.Cols())
	if err != nil {
		return nil, hssErrorf("Apply", err)
	}
	if _, err = h.ApplyInto(ta, b, 0, c, opts...); err != nil {
		return nil, err
	}

	return c, nil
}

// validateApply checks op(A)·B against C before any work starts.
func (h *Matrix) validateApply(ta matrix.Op, b, c *matrix.Dense) error {
	if b == nil || c == nil {
		return ErrNilNode
	}
	m, k := h.rows, h.cols
	switch ta {
	case matrix.NoTrans:
	case matrix.Trans, matrix.ConjTrans:
		m, k = k, m
	default:
		return matrix.ErrUnknownOp
	}
	if b.Rows() != k || c.Rows() != m || c.Cols() != b.Cols() {
		return fmt.Errorf("op(A) %dx%d, B %dx%d, C %dx%d: %w",
			m, k, b.Rows(), b.Cols(), c.Rows(), c.Cols(), ErrDimensionMismatch)
	}

	return nil
}

// ApplyInto computes C = op(A)·B + β·C in place and returns the flops spent.
// β = 0 overwrites C, β = 1 accumulates into it.
//
// Errors: ErrNilNode, matrix.ErrUnknownOp, ErrDimensionMismatch. Shapes are
// checked before any recursion; on error C is untouched.
//
// Complexity: O(n·r·nrhs) for leaf size and ranks bounded by r.
func (h *Matrix) ApplyInto(ta matrix.Op, b *matrix.Dense, beta float64, c *matrix.Dense, opts ...Option) (int64, error) {
	if err := h.validateApply(ta, b, c); err != nil {
		return 0, hssErrorf("ApplyInto", err)
	}
	o := NewOptions(opts...)
	e := &applyEngine{o: orientation{adjoint: ta.Transposed()}, taskDepth: o.TaskDepth}
	w := &workApply{}
	if err := e.forward(h, b, w, true, 0); err != nil {
		return 0, hssErrorf("ApplyInto", err)
	}
	if err := e.backward(h, b, beta, c, w, true, 0); err != nil {
		return 0, hssErrorf("ApplyInto", err)
	}
	f := e.flops.Load()
	o.Logger.Debug("hss apply",
		"op", ta.String(), "rows", h.rows, "cols", h.cols, "nrhs", b.Cols(), "flops", f)

	return f, nil
}

func (e *applyEngine) forward(h *Matrix, b *matrix.Dense, w *workApply, isroot bool, depth int) error {
	in := e.o.in(h)
	if h.Leaf() {
		if isroot {
			return nil
		}
		off, n := e.o.inRange(h, w)
		bs, err := b.RowView(off, n)
		if err != nil {
			return err
		}
		if w.tmp1, err = matrix.NewDense(in.Cols(), b.Cols()); err != nil {
			return err
		}
		return e.gemm(matrix.ConjTrans, matrix.NoTrans, 1, in, bs, 0, w.tmp1)
	}
	w0, w1 := w.children(h)
	if err := fork(depth, e.taskDepth,
		func() error { return e.forward(h.ch[0], b, w0, false, depth+1) },
		func() error { return e.forward(h.ch[1], b, w1, false, depth+1) },
	); err != nil {
		return err
	}
	if isroot {
		return nil
	}
	cat, err := matrix.VConcat(w0.tmp1, w1.tmp1)
	if err != nil {
		return err
	}
	if w.tmp1, err = matrix.NewDense(in.Cols(), b.Cols()); err != nil {
		return err
	}

	return e.gemm(matrix.ConjTrans, matrix.NoTrans, 1, in, cat, 0, w.tmp1)
}

func (e *applyEngine) backward(h *Matrix, b *matrix.Dense, beta float64, c *matrix.Dense, w *workApply, isroot bool, depth int) error {
	out := e.o.out(h)
	if h.Leaf() {
		inOff, inN := e.o.inRange(h, w)
		outOff, outN := e.o.outRange(h, w)
		bs, err := b.RowView(inOff, inN)
		if err != nil {
			return err
		}
		cs, err := c.RowView(outOff, outN)
		if err != nil {
			return err
		}
		if err = e.gemm(e.o.diag(), matrix.NoTrans, 1, h.d, bs, beta, cs); err != nil {
			return err
		}
		if !isroot && out.Cols() > 0 {
			return e.gemm(matrix.NoTrans, matrix.NoTrans, 1, out, w.tmp2, 1, cs)
		}
		return nil
	}

	w0, w1 := w.c[0], w.c[1]
	r0 := e.o.out(h.ch[0]).Cols()
	r1 := e.o.out(h.ch[1]).Cols()
	var err error
	if w0.tmp2, err = matrix.NewDense(r0, b.Cols()); err != nil {
		return err
	}
	if w1.tmp2, err = matrix.NewDense(r1, b.Cols()); err != nil {
		return err
	}
	if !isroot && out.Cols() > 0 {
		// expand this node's correction, split it between the children
		tmp, err := matrix.MulOp(matrix.NoTrans, matrix.NoTrans, out, w.tmp2)
		if err != nil {
			return err
		}
		e.flops.Add(flops.GemmFlops(tmp.Rows(), tmp.Cols(), out.Cols(), 0))
		if err = matrix.CopyBlock(r0, b.Cols(), tmp, 0, 0, w0.tmp2, 0, 0); err != nil {
			return err
		}
		if err = matrix.CopyBlock(r1, b.Cols(), tmp, r0, 0, w1.tmp2, 0, 0); err != nil {
			return err
		}
	}
	k0, op0 := e.o.coupling(h, 0)
	if err = e.gemm(op0, matrix.NoTrans, 1, k0, w1.tmp1, 1, w0.tmp2); err != nil {
		return err
	}
	k1, op1 := e.o.coupling(h, 1)
	if err = e.gemm(op1, matrix.NoTrans, 1, k1, w0.tmp1, 1, w1.tmp2); err != nil {
		return err
	}

	return fork(depth, e.taskDepth,
		func() error { return e.backward(h.ch[0], b, beta, c, w0, false, depth+1) },
		func() error { return e.backward(h.ch[1], b, beta, c, w1, false, depth+1) },
	)
}
