// SPDX-License-Identifier: MIT

// Package hss: dense reconstruction, used to verify engines and compression.
package hss

import (
	"github.com/katalvlaran/hss/matrix"
)

// Dense reconstructs the explicit matrix represented by the tree.
// Complexity: O(rows·cols) memory; intended for tests and residual checks.
func (h *Matrix) Dense() (*matrix.Dense, error) {
	a, _, _, err := h.dense()
	if err != nil {
		return nil, hssErrorf("Dense", err)
	}

	return a, nil
}

// dense returns the block together with the nested bases Ũ and Ṽ.
func (h *Matrix) dense() (a, ut, vt *matrix.Dense, err error) {
	if h.Leaf() {
		return h.d.Copy(), h.u, h.v, nil
	}
	c0, c1 := h.ch[0], h.ch[1]
	a0, u0, v0, err := c0.dense()
	if err != nil {
		return nil, nil, nil, err
	}
	a1, u1, v1, err := c1.dense()
	if err != nil {
		return nil, nil, nil, err
	}
	if a, err = matrix.NewDense(h.rows, h.cols); err != nil {
		return nil, nil, nil, err
	}
	if err = matrix.CopyBlock(c0.rows, c0.cols, a0, 0, 0, a, 0, 0); err != nil {
		return nil, nil, nil, err
	}
	if err = matrix.CopyBlock(c1.rows, c1.cols, a1, 0, 0, a, c0.rows, c0.cols); err != nil {
		return nil, nil, nil, err
	}
	// A01 = Ũ0·B01·Ṽ1ᴴ, A10 = Ũ1·B10·Ṽ0ᴴ
	a01, err := lowRank(u0, h.b01, v1)
	if err != nil {
		return nil, nil, nil, err
	}
	a10, err := lowRank(u1, h.b10, v0)
	if err != nil {
		return nil, nil, nil, err
	}
	if err = matrix.CopyBlock(c0.rows, c1.cols, a01, 0, 0, a, 0, c0.cols); err != nil {
		return nil, nil, nil, err
	}
	if err = matrix.CopyBlock(c1.rows, c0.cols, a10, 0, 0, a, c0.rows, 0); err != nil {
		return nil, nil, nil, err
	}
	if ut, err = nestBasis(u0, u1, h.u); err != nil {
		return nil, nil, nil, err
	}
	if vt, err = nestBasis(v0, v1, h.v); err != nil {
		return nil, nil, nil, err
	}

	return a, ut, vt, nil
}

// lowRank returns x·b·yᴴ.
func lowRank(x, b, y *matrix.Dense) (*matrix.Dense, error) {
	xb, err := matrix.Mul(x, b)
	if err != nil {
		return nil, err
	}

	return matrix.MulOp(matrix.NoTrans, matrix.ConjTrans, xb, y)
}

// nestBasis returns diag(b0, b1)·g, the nested basis of a parent.
func nestBasis(b0, b1, g *matrix.Dense) (*matrix.Dense, error) {
	r0 := b0.Cols()
	g0, err := g.Block(0, 0, r0, g.Cols())
	if err != nil {
		return nil, err
	}
	g1, err := g.Block(r0, 0, g.Rows()-r0, g.Cols())
	if err != nil {
		return nil, err
	}
	top, err := matrix.Mul(b0, g0)
	if err != nil {
		return nil, err
	}
	bottom, err := matrix.Mul(b1, g1)
	if err != nil {
		return nil, err
	}

	return matrix.VConcat(top, bottom)
}
