// SPDX-License-Identifier: MIT

// Package hss: per-call workspace and traversal orientation.
package hss

import "github.com/katalvlaran/hss/matrix"

// workApply mirrors the tree for one apply call. Slots are written by the
// task that owns the subtree and read by its parent after the join.
type workApply struct {
	rowOff, colOff int
	tmp1           *matrix.Dense // forward summary: in-generatorᴴ · input slice
	tmp2           *matrix.Dense // backward correction in out-generator coordinates
	c              [2]*workApply
}

// children allocates the child slots with their offsets.
func (w *workApply) children(h *Matrix) (w0, w1 *workApply) {
	w0 = &workApply{rowOff: w.rowOff, colOff: w.colOff}
	w1 = &workApply{rowOff: w.rowOff + h.ch[0].rows, colOff: w.colOff + h.ch[0].cols}
	w.c = [2]*workApply{w0, w1}

	return w0, w1
}

// orientation selects A (NoTrans) or Aᴴ (adjoint). The adjoint swaps the
// roles of U and V, of rows and columns, and replaces B01/B10 by B10ᴴ/B01ᴴ.
type orientation struct {
	adjoint bool
}

// in is the generator compressing the input in the forward pass.
func (o orientation) in(h *Matrix) *matrix.Dense {
	if o.adjoint {
		return h.u
	}

	return h.v
}

// out is the generator expanding corrections in the backward pass.
func (o orientation) out(h *Matrix) *matrix.Dense {
	if o.adjoint {
		return h.v
	}

	return h.u
}

// inRange is the slice of the input a node reads.
func (o orientation) inRange(h *Matrix, w *workApply) (off, n int) {
	if o.adjoint {
		return w.rowOff, h.rows
	}

	return w.colOff, h.cols
}

// outRange is the slice of the output a node writes.
func (o orientation) outRange(h *Matrix, w *workApply) (off, n int) {
	if o.adjoint {
		return w.colOff, h.cols
	}

	return w.rowOff, h.rows
}

// diag is the op applied to a leaf's D.
func (o orientation) diag() matrix.Op {
	if o.adjoint {
		return matrix.ConjTrans
	}

	return matrix.NoTrans
}

// coupling returns the block feeding child side from its sibling's summary,
// with the op to apply to it.
//
//	NoTrans: side 0 ← B01, side 1 ← B10
//	adjoint: side 0 ← B10ᴴ, side 1 ← B01ᴴ
func (o orientation) coupling(h *Matrix, side int) (*matrix.Dense, matrix.Op) {
	if o.adjoint {
		if side == 0 {
			return h.b10, matrix.ConjTrans
		}
		return h.b01, matrix.ConjTrans
	}
	if side == 0 {
		return h.b01, matrix.NoTrans
	}

	return h.b10, matrix.NoTrans
}
