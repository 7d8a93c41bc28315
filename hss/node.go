// SPDX-License-Identifier: MIT

// Package hss: the HSS tree.
//
// A node covers a contiguous row range and a contiguous column range of the
// matrix. Children split both ranges in order (child 0 first), so offsets are
// never stored; engines derive them while descending.
//
// Shapes, with r = URank and s = VRank:
//
//	leaf:     D rows×cols, U rows×r, V cols×s
//	internal: U (c0.r + c1.r)×r, V (c0.s + c1.s)×s,
//	          B01 c0.r × c1.s, B10 c1.r × c0.s
//
// The off-diagonal blocks of an internal node are Ũ0·B01·Ṽ1ᴴ and Ũ1·B10·Ṽ0ᴴ,
// where Ũ of an internal node is diag(Ũ0, Ũ1)·U and Ũ of a leaf is U.
package hss

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/katalvlaran/hss/matrix"
)

// Matrix is a node of an HSS tree and, at the root, the whole matrix.
// It is immutable after construction: engines only read D, U, V, B01, B10.
type Matrix struct {
	rows, cols int
	d          *matrix.Dense // leaf only
	u, v       *matrix.Dense
	b01, b10   *matrix.Dense // internal only
	ch         [2]*Matrix
}

// emptyIfNil substitutes an n×0 generator for nil.
func emptyIfNil(g *matrix.Dense, n int) *matrix.Dense {
	if g != nil {
		return g
	}
	e, _ := matrix.NewDense(n, 0)

	return e
}

// NewLeaf builds a leaf from its diagonal block and generators.
// A nil U or V stands for a rank-0 generator.
// Errors: ErrNilNode (nil d), ErrBadGenerator.
func NewLeaf(d, u, v *matrix.Dense) (*Matrix, error) {
	if d == nil {
		return nil, hssErrorf("NewLeaf", ErrNilNode)
	}
	u, v = emptyIfNil(u, d.Rows()), emptyIfNil(v, d.Cols())
	if u.Rows() != d.Rows() || v.Rows() != d.Cols() {
		return nil, hssErrorf("NewLeaf", fmt.Errorf("D %dx%d, U %dx%d, V %dx%d: %w",
			d.Rows(), d.Cols(), u.Rows(), u.Cols(), v.Rows(), v.Cols(), ErrBadGenerator))
	}

	return &Matrix{rows: d.Rows(), cols: d.Cols(), d: d, u: u, v: v}, nil
}

// NewInternal builds an internal node owning c0 and c1.
// A nil U or V stands for a rank-0 generator; nil B01/B10 stand for zero
// blocks of the implied shape.
// Errors: ErrNilNode, ErrSharedChild, ErrBadGenerator.
func NewInternal(u, v, b01, b10 *matrix.Dense, c0, c1 *Matrix) (*Matrix, error) {
	if c0 == nil || c1 == nil {
		return nil, hssErrorf("NewInternal", ErrNilNode)
	}
	if c0 == c1 {
		return nil, hssErrorf("NewInternal", ErrSharedChild)
	}
	ru, rv := c0.URank()+c1.URank(), c0.VRank()+c1.VRank()
	u, v = emptyIfNil(u, ru), emptyIfNil(v, rv)
	if b01 == nil {
		b01, _ = matrix.NewDense(c0.URank(), c1.VRank())
	}
	if b10 == nil {
		b10, _ = matrix.NewDense(c1.URank(), c0.VRank())
	}
	switch {
	case u.Rows() != ru:
		return nil, hssErrorf("NewInternal", fmt.Errorf("U has %d rows, children ranks sum to %d: %w", u.Rows(), ru, ErrBadGenerator))
	case v.Rows() != rv:
		return nil, hssErrorf("NewInternal", fmt.Errorf("V has %d rows, children ranks sum to %d: %w", v.Rows(), rv, ErrBadGenerator))
	case b01.Rows() != c0.URank() || b01.Cols() != c1.VRank():
		return nil, hssErrorf("NewInternal", fmt.Errorf("B01 %dx%d, want %dx%d: %w",
			b01.Rows(), b01.Cols(), c0.URank(), c1.VRank(), ErrBadGenerator))
	case b10.Rows() != c1.URank() || b10.Cols() != c0.VRank():
		return nil, hssErrorf("NewInternal", fmt.Errorf("B10 %dx%d, want %dx%d: %w",
			b10.Rows(), b10.Cols(), c1.URank(), c0.VRank(), ErrBadGenerator))
	}

	return &Matrix{
		rows: c0.rows + c1.rows,
		cols: c0.cols + c1.cols,
		u:    u, v: v, b01: b01, b10: b10,
		ch: [2]*Matrix{c0, c1},
	}, nil
}

// Leaf reports whether the node holds an explicit diagonal block.
func (h *Matrix) Leaf() bool { return h.ch[0] == nil }

// Rows returns the number of rows covered by the node.
func (h *Matrix) Rows() int { return h.rows }

// Cols returns the number of columns covered by the node.
func (h *Matrix) Cols() int { return h.cols }

// Dims returns (Rows, Cols).
func (h *Matrix) Dims() (rows, cols int) { return h.rows, h.cols }

// URank is the number of columns of U.
func (h *Matrix) URank() int { return h.u.Cols() }

// VRank is the number of columns of V.
func (h *Matrix) VRank() int { return h.v.Cols() }

// Child returns child i (0 or 1), nil for leaves.
func (h *Matrix) Child(i int) *Matrix { return h.ch[i] }

// D returns the diagonal block of a leaf (nil for internal nodes).
// The returned matrix must not be modified.
func (h *Matrix) D() *matrix.Dense { return h.d }

// U returns the row generator. Must not be modified.
func (h *Matrix) U() *matrix.Dense { return h.u }

// V returns the column generator. Must not be modified.
func (h *Matrix) V() *matrix.Dense { return h.v }

// B01 returns the transfer block coupling child 0 rows to child 1 columns.
func (h *Matrix) B01() *matrix.Dense { return h.b01 }

// B10 returns the transfer block coupling child 1 rows to child 0 columns.
func (h *Matrix) B10() *matrix.Dense { return h.b10 }

// Levels returns the height of the tree (1 for a single leaf).
func (h *Matrix) Levels() int {
	if h.Leaf() {
		return 1
	}

	return 1 + max(h.ch[0].Levels(), h.ch[1].Levels())
}

// MaxRank returns the largest U or V rank in the tree.
func (h *Matrix) MaxRank() int {
	r := max(h.URank(), h.VRank())
	if !h.Leaf() {
		r = max(r, h.ch[0].MaxRank(), h.ch[1].MaxRank())
	}

	return r
}

// Leaves returns the number of leaves.
func (h *Matrix) Leaves() int {
	if h.Leaf() {
		return 1
	}

	return h.ch[0].Leaves() + h.ch[1].Leaves()
}

// Fingerprint hashes the tree structure (shapes and ranks, not values).
// Processes holding the same tree obtain the same value.
func (h *Matrix) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	var walk func(n *Matrix)
	walk = func(n *Matrix) {
		for _, x := range [...]int{n.rows, n.cols, n.URank(), n.VRank()} {
			binary.LittleEndian.PutUint64(buf[:], uint64(x))
			_, _ = d.Write(buf[:])
		}
		if n.Leaf() {
			_, _ = d.Write([]byte{'L'})
			return
		}
		_, _ = d.Write([]byte{'I'})
		walk(n.ch[0])
		walk(n.ch[1])
	}
	walk(h)

	return d.Sum64()
}
