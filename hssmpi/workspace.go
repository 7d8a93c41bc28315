// SPDX-License-Identifier: MIT

// Package hssmpi: per-call workspace and traversal orientation.
package hssmpi

import (
	"github.com/katalvlaran/hss/distmat"
	"github.com/katalvlaran/hss/matrix"
)

// orientation selects A (NoTrans) or Aᴴ (adjoint), like its shared-memory
// counterpart: the adjoint swaps U and V, rows and columns, and uses Kᴴ.
type orientation struct {
	adjoint bool
}

func (o orientation) in(n *node) *distmat.Matrix {
	if o.adjoint {
		return n.u
	}

	return n.v
}

func (o orientation) out(n *node) *distmat.Matrix {
	if o.adjoint {
		return n.v
	}

	return n.u
}

// inRange is the slice of the input a node reads.
func (o orientation) inRange(n *node) (off, size int) {
	if o.adjoint {
		return n.rowOff, n.h.Rows()
	}

	return n.colOff, n.h.Cols()
}

// outRange is the slice of the output a node writes.
func (o orientation) outRange(n *node) (off, size int) {
	if o.adjoint {
		return n.colOff, n.h.Cols()
	}

	return n.rowOff, n.h.Rows()
}

func (o orientation) diag() matrix.Op {
	if o.adjoint {
		return matrix.ConjTrans
	}

	return matrix.NoTrans
}

// coupling is the op applied to K: K·[c0.tmp1; c1.tmp1] stacks B01·c1.tmp1
// over B10·c0.tmp1, and Kᴴ does the same for the adjoint.
func (o orientation) coupling() matrix.Op {
	if o.adjoint {
		return matrix.ConjTrans
	}

	return matrix.NoTrans
}

// workApply holds the distributed buffers of one node for one apply call.
// Every process allocates the whole tree; buffers of nodes it does not
// belong to are inactive handles, which redistribution needs for shapes.
type workApply struct {
	b, c       *distmat.Matrix // leaf: input and output slices
	cat        *distmat.Matrix // internal: [c0.tmp1; c1.tmp1]
	tmp1, tmp2 *distmat.Matrix
	ch         [2]*workApply
}

func newWorkApply(n *node, o orientation, nrhs int) (*workApply, error) {
	w := &workApply{}
	var err error
	if w.tmp1, err = distmat.Zeros(n.grid, o.in(n).Cols(), nrhs); err != nil {
		return nil, err
	}
	if w.tmp2, err = distmat.Zeros(n.grid, o.out(n).Cols(), nrhs); err != nil {
		return nil, err
	}
	if n.leaf() {
		_, in := o.inRange(n)
		_, out := o.outRange(n)
		if w.b, err = distmat.Zeros(n.grid, in, nrhs); err != nil {
			return nil, err
		}
		if w.c, err = distmat.Zeros(n.grid, out, nrhs); err != nil {
			return nil, err
		}
		return w, nil
	}
	for i := range w.ch {
		if w.ch[i], err = newWorkApply(n.ch[i], o, nrhs); err != nil {
			return nil, err
		}
	}
	w.cat, err = distmat.Zeros(n.grid, w.ch[0].tmp1.Rows()+w.ch[1].tmp1.Rows(), nrhs)
	if err != nil {
		return nil, err
	}

	return w, nil
}

// leafSlot pairs a leaf with one of its buffers.
type leafSlot struct {
	n   *node
	buf *distmat.Matrix
}

// leaves collects pick(w) for every leaf under n, left to right.
func (w *workApply) leaves(n *node, pick func(*workApply) *distmat.Matrix, out []leafSlot) []leafSlot {
	if n.leaf() {
		return append(out, leafSlot{n: n, buf: pick(w)})
	}
	out = w.ch[0].leaves(n.ch[0], pick, out)

	return w.ch[1].leaves(n.ch[1], pick, out)
}

// scatter appends the copies moving the rows rng(leaf) of g into each slot.
func scatter(g *distmat.Matrix, slots []leafSlot, rng func(*node) (int, int), out []distmat.Copy) []distmat.Copy {
	for _, s := range slots {
		off, size := rng(s.n)
		out = append(out, distmat.Copy{Src: g, SrcRow: off, Dst: s.buf, Rows: size, Cols: g.Cols()})
	}

	return out
}

// gather appends the copies moving each slot back into rows rng(leaf) of g.
func gather(slots []leafSlot, g *distmat.Matrix, rng func(*node) (int, int), out []distmat.Copy) []distmat.Copy {
	for _, s := range slots {
		off, size := rng(s.n)
		out = append(out, distmat.Copy{Src: s.buf, Dst: g, DstRow: off, Rows: size, Cols: g.Cols()})
	}

	return out
}
