// SPDX-License-Identifier: MIT

// Package hssmpi: the distributed tree.
//
// Every process holds the same *hss.Matrix. New assigns each node a
// contiguous range of ranks and stores the node's blocks 2D block-cyclically
// on a grid over that range:
//
//   - the root owns every rank of the communicator;
//   - an internal node with P > 1 ranks gives its children P0 and P−P0
//     ranks, P0 proportional to the size of child 0 and at least 1 each way;
//   - a node with a single rank hands that rank to both children.
//
// A process is active on a node iff its rank lies in the node's range. The
// partition is a pure function of the tree and the communicator size, so
// every process derives the same layout without communicating.
package hssmpi

import (
	"fmt"
	"math"

	"github.com/katalvlaran/hss/comm"
	"github.com/katalvlaran/hss/distmat"
	"github.com/katalvlaran/hss/hss"
)

// Matrix is one process's handle on a distributed HSS matrix.
type Matrix struct {
	tree        *hss.Matrix
	comm        *comm.Comm
	root        *node
	opts        Options
	fingerprint uint64
}

// node mirrors one tree node. Blocks are distributed on grid; processes
// outside the grid hold inactive handles that only know global shapes.
type node struct {
	h              *hss.Matrix
	grid           *distmat.Grid
	rowOff, colOff int
	d              *distmat.Matrix // leaf only
	u, v           *distmat.Matrix
	k              *distmat.Matrix // internal only: [0 B01; B10 0]
	ch             [2]*node
}

func (n *node) leaf() bool { return n.ch[0] == nil }

// New distributes tree over the ranks of c. Every member of c must call New
// with the same tree and options. No communication takes place.
// Errors: ErrNilTree, distmat errors for invalid block sizes.
func New(tree *hss.Matrix, c *comm.Comm, opts ...Option) (*Matrix, error) {
	if tree == nil || c == nil {
		return nil, mpiErrorf("New", ErrNilTree)
	}
	o := NewOptions(opts...)
	root, err := build(tree, c, c.Lo(), c.Size(), 0, 0, o.BlockSize)
	if err != nil {
		return nil, mpiErrorf("New", err)
	}
	m := &Matrix{tree: tree, comm: c, root: root, opts: o, fingerprint: tree.Fingerprint()}
	o.Logger.Debug("hssmpi distribute",
		"rank", c.Rank(), "procs", c.Size(), "rows", tree.Rows(), "cols", tree.Cols(),
		"levels", tree.Levels(), "block_size", o.BlockSize)

	return m, nil
}

// Tree returns the replicated tree.
func (m *Matrix) Tree() *hss.Matrix { return m.tree }

// Comm returns the communicator the matrix lives on.
func (m *Matrix) Comm() *comm.Comm { return m.comm }

// Grid returns the root grid, which spans every rank of Comm. Operands
// distributed on it are always accepted.
func (m *Matrix) Grid() *distmat.Grid { return m.root.grid }

// Rows returns the global row count.
func (m *Matrix) Rows() int { return m.tree.Rows() }

// Cols returns the global column count.
func (m *Matrix) Cols() int { return m.tree.Cols() }

// Active reports whether the caller holds part of the root node.
func (m *Matrix) Active() bool { return m.root.grid.Active() }

// Ranks returns the world rank range [lo, lo+size) of the node reached by
// following path from the root (0 for child 0, 1 for child 1).
func (m *Matrix) Ranks(path ...int) (lo, size int, err error) {
	n := m.root
	for _, side := range path {
		if n.leaf() || side < 0 || side > 1 {
			return 0, 0, mpiErrorf("Ranks", fmt.Errorf("path %v: %w", path, ErrDimensionMismatch))
		}
		n = n.ch[side]
	}

	return n.grid.Lo(), n.grid.Size(), nil
}

func build(h *hss.Matrix, parent *comm.Comm, lo, size, rowOff, colOff, nb int) (*node, error) {
	g, err := distmat.NewGrid(parent, lo, size, nb, nb)
	if err != nil {
		return nil, err
	}
	n := &node{h: h, grid: g, rowOff: rowOff, colOff: colOff}
	if n.u, err = distmat.FromGlobal(g, h.U()); err != nil {
		return nil, err
	}
	if n.v, err = distmat.FromGlobal(g, h.V()); err != nil {
		return nil, err
	}
	if h.Leaf() {
		if n.d, err = distmat.FromGlobal(g, h.D()); err != nil {
			return nil, err
		}
		return n, nil
	}
	k, err := h.Coupling()
	if err != nil {
		return nil, err
	}
	if n.k, err = distmat.FromGlobal(g, k); err != nil {
		return nil, err
	}

	c0, c1 := h.Child(0), h.Child(1)
	lo0, p0, lo1, p1 := split(lo, size, c0.Rows()+c0.Cols(), h.Rows()+h.Cols())
	if n.ch[0], err = build(c0, parent, lo0, p0, rowOff, colOff, nb); err != nil {
		return nil, err
	}
	if n.ch[1], err = build(c1, parent, lo1, p1, rowOff+c0.Rows(), colOff+c0.Cols(), nb); err != nil {
		return nil, err
	}

	return n, nil
}

// split divides ranks [lo, lo+size) between two children in proportion
// part/total, keeping at least one rank on each side.
func split(lo, size, part, total int) (lo0, p0, lo1, p1 int) {
	if size == 1 {
		return lo, 1, lo, 1
	}
	p0 = size / 2
	if total > 0 {
		p0 = int(math.Round(float64(size) * float64(part) / float64(total)))
	}
	p0 = min(max(p0, 1), size-1)

	return lo, p0, lo + p0, size - p0
}
