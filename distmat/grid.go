// SPDX-License-Identifier: MIT

// Package distmat: 2D process grid and block-cyclic index maps.
//
// A Grid lays the contiguous world ranks [lo, lo+size) out as nprow × npcol
// in row-major order. Global row i lives on process row owner(i, mb, nprow)
// at local row g2l(i, mb, nprow); columns likewise with nb and npcol.
package distmat

import (
	"fmt"
	"math"

	"github.com/katalvlaran/hss/comm"
)

// Default block sizes.
const (
	DefaultBlockSize = 32
)

// Grid is one process's view of a 2D process grid.
// Every process can build the Grid of any rank range; only members hold a
// communicator and own local storage.
type Grid struct {
	lo, size     int
	nprow, npcol int
	mb, nb       int
	me           int        // caller's world rank
	comm         *comm.Comm // nil on non-members
}

// NewGrid builds the grid over world ranks [lo, lo+size), which must lie in
// parent. No communication takes place.
// Errors: ErrInvalidGrid, comm.ErrInvalidRange.
func NewGrid(parent *comm.Comm, lo, size, mb, nb int) (*Grid, error) {
	if size < 1 || mb < 1 || nb < 1 {
		return nil, distErrorf("NewGrid", fmt.Errorf("size=%d mb=%d nb=%d: %w", size, mb, nb, ErrInvalidGrid))
	}
	sub, err := parent.Sub(lo, size)
	if err != nil {
		return nil, distErrorf("NewGrid", err)
	}
	nprow, npcol := gridShape(size)

	return &Grid{
		lo: lo, size: size,
		nprow: nprow, npcol: npcol,
		mb: mb, nb: nb,
		me:   parent.WorldRank(),
		comm: sub,
	}, nil
}

// gridShape picks npcol as the largest divisor of size not exceeding √size.
func gridShape(size int) (nprow, npcol int) {
	npcol = int(math.Sqrt(float64(size)))
	for npcol > 1 && size%npcol != 0 {
		npcol--
	}
	if npcol < 1 {
		npcol = 1
	}

	return size / npcol, npcol
}

// Lo returns the first world rank of the grid.
func (g *Grid) Lo() int { return g.lo }

// Size returns the number of processes in the grid.
func (g *Grid) Size() int { return g.size }

// Dims returns nprow, npcol.
func (g *Grid) Dims() (nprow, npcol int) { return g.nprow, g.npcol }

// BlockSize returns mb, nb.
func (g *Grid) BlockSize() (mb, nb int) { return g.mb, g.nb }

// Active reports whether the caller is a member.
func (g *Grid) Active() bool { return g.comm != nil }

// Comm returns the grid communicator, nil on non-members.
func (g *Grid) Comm() *comm.Comm { return g.comm }

// Contains reports whether worldRank is a member.
func (g *Grid) Contains(worldRank int) bool {
	return worldRank >= g.lo && worldRank < g.lo+g.size
}

// Coords returns the (prow, pcol) of a member world rank.
func (g *Grid) Coords(worldRank int) (prow, pcol int) {
	r := worldRank - g.lo
	return r / g.npcol, r % g.npcol
}

// RankAt returns the world rank at grid position (prow, pcol).
func (g *Grid) RankAt(prow, pcol int) int { return g.lo + prow*g.npcol + pcol }

// Owner returns the world rank holding global entry (i, j).
func (g *Grid) Owner(i, j int) int {
	return g.RankAt(owner(i, g.mb, g.nprow), owner(j, g.nb, g.npcol))
}

// Same reports whether g and h describe the same distribution.
func (g *Grid) Same(h *Grid) bool {
	return g.lo == h.lo && g.size == h.size && g.mb == h.mb && g.nb == h.nb
}

// numroc returns how many of n indices, dealt in blocks of nb over nprocs
// processes starting at process 0, land on process iproc.
func numroc(n, nb, iproc, nprocs int) int {
	nblocks := n / nb
	cnt := (nblocks / nprocs) * nb
	extra := nblocks % nprocs
	switch {
	case iproc < extra:
		cnt += nb
	case iproc == extra:
		cnt += n % nb
	}

	return cnt
}

// owner returns the process coordinate holding global index i.
func owner(i, nb, nprocs int) int { return (i / nb) % nprocs }

// g2l maps global index i to its local index on its owner.
func g2l(i, nb, nprocs int) int { return (i/(nb*nprocs))*nb + i%nb }

// l2g maps local index il on process iproc back to the global index.
func l2g(il, nb, iproc, nprocs int) int { return (il/nb)*nb*nprocs + iproc*nb + il%nb }
