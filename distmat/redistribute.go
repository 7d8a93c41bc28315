// SPDX-License-Identifier: MIT

// Package distmat: grid-aware redistribution of sub-blocks.
//
// Redistribute moves rectangular windows between distributed matrices that
// may live on different, possibly disjoint grids. It is a single all-to-all
// exchange over a communicator covering every rank that owns a source or
// destination entry. Processes outside a grid contribute nothing for it.
package distmat

import (
	"context"
	"fmt"

	"github.com/katalvlaran/hss/comm"
)

// Copy describes one window transfer: Src[SrcRow:+Rows, SrcCol:+Cols] is
// written to Dst[DstRow:+Rows, DstCol:+Cols].
type Copy struct {
	Src            *Matrix
	SrcRow, SrcCol int
	Dst            *Matrix
	DstRow, DstCol int
	Rows, Cols     int
}

// entry is one element in flight; k indexes the Copy it belongs to.
type entry struct {
	k, i, j int // i, j are destination global indices
	v       float64
}

func (cp Copy) validate() error {
	if cp.Src == nil || cp.Dst == nil {
		return fmt.Errorf("nil operand: %w", ErrBadWindow)
	}
	if cp.Rows < 0 || cp.Cols < 0 ||
		cp.SrcRow < 0 || cp.SrcCol < 0 || cp.SrcRow+cp.Rows > cp.Src.rows || cp.SrcCol+cp.Cols > cp.Src.cols ||
		cp.DstRow < 0 || cp.DstCol < 0 || cp.DstRow+cp.Rows > cp.Dst.rows || cp.DstCol+cp.Cols > cp.Dst.cols {
		return fmt.Errorf("src %dx%d@(%d,%d), dst %dx%d@(%d,%d), window %dx%d: %w",
			cp.Src.rows, cp.Src.cols, cp.SrcRow, cp.SrcCol,
			cp.Dst.rows, cp.Dst.cols, cp.DstRow, cp.DstCol, cp.Rows, cp.Cols, ErrBadWindow)
	}

	return nil
}

// Redistribute performs all copies in one exchange over c. Every member of
// c must call it with the same list of copies (same shapes and grids).
// Errors: ErrBadWindow, ErrNotCovered, and communication errors.
func Redistribute(ctx context.Context, c *comm.Comm, copies ...Copy) error {
	for k, cp := range copies {
		if err := cp.validate(); err != nil {
			return distErrorf("Redistribute", fmt.Errorf("copy %d: %w", k, err))
		}
		if !covers(c, cp.Src.grid) || !covers(c, cp.Dst.grid) {
			return distErrorf("Redistribute", fmt.Errorf("copy %d: %w", k, ErrNotCovered))
		}
	}

	out := make([][]entry, c.Size())
	for k, cp := range copies {
		if !cp.Src.Active() {
			continue
		}
		ri, ci := cp.Src.RowIndices(), cp.Src.ColIndices()
		raw, lc := cp.Src.local.Raw(), len(ci)
		for il, i := range ri {
			if i < cp.SrcRow || i >= cp.SrcRow+cp.Rows {
				continue
			}
			di := i - cp.SrcRow + cp.DstRow
			for jl, j := range ci {
				if j < cp.SrcCol || j >= cp.SrcCol+cp.Cols {
					continue
				}
				dj := j - cp.SrcCol + cp.DstCol
				dst := cp.Dst.grid.Owner(di, dj) - c.Lo()
				out[dst] = append(out[dst], entry{k: k, i: di, j: dj, v: raw[il*lc+jl]})
			}
		}
	}

	payload := make([]any, len(out))
	for r, es := range out {
		payload[r] = es
	}
	in, err := c.AllToAll(ctx, payload)
	if err != nil {
		return distErrorf("Redistribute", err)
	}
	for _, x := range in {
		es, _ := x.([]entry)
		for _, e := range es {
			dst := copies[e.k].Dst
			il, jl := dst.localIndex(e.i, e.j)
			dst.local.Raw()[il*dst.local.Cols()+jl] = e.v
		}
	}

	return nil
}

func covers(c *comm.Comm, g *Grid) bool {
	return c.Contains(g.lo) && c.Contains(g.lo+g.size-1)
}
