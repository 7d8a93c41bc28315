// SPDX-License-Identifier: MIT

// Package hss: synthetic trees for tests, benchmarks and examples.
package hss

import (
	"fmt"
	"math/rand"

	"github.com/katalvlaran/hss/matrix"
)

// Random builds a balanced square n×n HSS tree with leaves of at most
// leafSize rows and generators of rank at most rank (the root has rank 0).
//
// Entries are scaled so that every off-diagonal entry has magnitude below 1,
// and n is added to the diagonal of every leaf block: the result is strictly
// diagonally dominant and therefore well conditioned.
//
// rank == 0 yields a block-diagonal matrix. The draw order is fixed, so a
// seeded rng gives a reproducible tree.
// Errors: ErrInvalidSize when n < 1, leafSize < 1 or rank < 0.
func Random(rng *rand.Rand, n, leafSize, rank int) (*Matrix, error) {
	if n < 1 || leafSize < 1 || rank < 0 {
		return nil, hssErrorf("Random", fmt.Errorf("n=%d leafSize=%d rank=%d: %w", n, leafSize, rank, ErrInvalidSize))
	}
	g := &generator{rng: rng, n: n, leafSize: leafSize, rank: rank}

	return g.node(n, true)
}

type generator struct {
	rng               *rand.Rand
	n, leafSize, rank int
}

// fill returns an r×c matrix with entries in (-scale, scale).
func (g *generator) fill(r, c int, scale float64) *matrix.Dense {
	m, _ := matrix.NewDense(r, c)
	raw := m.Raw()
	for i := range raw {
		raw[i] = (g.rng.Float64()*2 - 1) * scale
	}

	return m
}

// scaleFor keeps generator rows in the unit 1-ball.
func scaleFor(r int) float64 {
	if r == 0 {
		return 0
	}

	return 1 / float64(r)
}

func (g *generator) node(size int, root bool) (*Matrix, error) {
	if size <= g.leafSize {
		r := min(g.rank, size)
		if root {
			r = 0
		}
		d := g.fill(size, size, 1)
		raw := d.Raw()
		for i := 0; i < size; i++ {
			raw[i*size+i] += float64(g.n)
		}
		return NewLeaf(d, g.fill(size, r, scaleFor(r)), g.fill(size, r, scaleFor(r)))
	}
	n0 := size / 2
	c0, err := g.node(n0, false)
	if err != nil {
		return nil, err
	}
	c1, err := g.node(size-n0, false)
	if err != nil {
		return nil, err
	}
	inner := c0.URank() + c1.URank()
	r := min(g.rank, inner)
	if root {
		r = 0
	}
	u := g.fill(inner, r, scaleFor(r))
	v := g.fill(c0.VRank()+c1.VRank(), r, scaleFor(r))
	b01 := g.fill(c0.URank(), c1.VRank(), scaleFor(c1.VRank()))
	b10 := g.fill(c1.URank(), c0.VRank(), scaleFor(c0.VRank()))

	return NewInternal(u, v, b01, b10, c0, c1)
}
