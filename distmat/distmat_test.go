// SPDX-License-Identifier: MIT
package distmat_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hss/comm"
	"github.com/katalvlaran/hss/distmat"
	"github.com/katalvlaran/hss/matrix"
)

func randDense(r, c int, seed int64) *matrix.Dense {
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	m, _ := matrix.NewDenseFrom(r, c, data)

	return m
}

func checkEqual(want, got *matrix.Dense, tol float64) error {
	if !matrix.EqualApprox(want, got, tol) {
		return fmt.Errorf("mismatch:\nwant\n%vgot\n%v", want, got)
	}
	return nil
}

// TestFromGlobalAllGather distributes and gathers back for several grids.
func TestFromGlobalAllGather(t *testing.T) {
	t.Parallel()
	a := randDense(7, 5, 1)
	for _, p := range []int{1, 2, 3, 4} {
		for _, nb := range []int{1, 2, 3} {
			err := comm.Run(context.Background(), p, func(ctx context.Context, c *comm.Comm) error {
				g, err := distmat.NewGrid(c, 0, p, nb, nb)
				if err != nil {
					return err
				}
				m, err := distmat.FromGlobal(g, a)
				if err != nil {
					return err
				}
				if m.Rows() != 7 || m.Cols() != 5 || !m.Active() {
					return errors.New("bad handle")
				}
				for li, i := range m.RowIndices() {
					for lj, j := range m.ColIndices() {
						v, ok := m.GlobalAt(i, j)
						w, _ := m.Local().At(li, lj)
						if !ok || v != w {
							return errors.New("GlobalAt disagrees with local tile")
						}
					}
				}
				back, err := m.AllGather(ctx)
				if err != nil {
					return err
				}
				return checkEqual(a, back, 0)
			})
			require.NoError(t, err, "p=%d nb=%d", p, nb)
		}
	}
}

// TestInactiveHandle checks that non-members know the shape but hold nothing.
func TestInactiveHandle(t *testing.T) {
	err := comm.Run(context.Background(), 3, func(ctx context.Context, c *comm.Comm) error {
		g, err := distmat.NewGrid(c, 1, 2, 2, 2)
		if err != nil {
			return err
		}
		m, err := distmat.Zeros(g, 4, 3)
		if err != nil {
			return err
		}
		if m.Rows() != 4 || m.Cols() != 3 {
			return errors.New("shape lost")
		}
		if c.Rank() == 0 {
			if g.Active() || m.Active() || m.Local() != nil || m.RowIndices() != nil {
				return errors.New("rank 0 must be inactive")
			}
			if got, _ := m.AllGather(ctx); got != nil {
				return errors.New("inactive gather must be nil")
			}
			return nil
		}
		if !m.Active() {
			return errors.New("member must be active")
		}
		return nil
	})
	require.NoError(t, err)
}

// TestRedistributeBetweenDisjointGrids moves windows of a matrix on ranks
// {0,1} to a matrix on ranks {2,3} and back onto the full grid.
func TestRedistributeBetweenDisjointGrids(t *testing.T) {
	a := randDense(6, 4, 3)
	want, _ := a.Block(1, 1, 4, 3)

	err := comm.Run(context.Background(), 4, func(ctx context.Context, c *comm.Comm) error {
		left, err := distmat.NewGrid(c, 0, 2, 1, 2)
		if err != nil {
			return err
		}
		right, err := distmat.NewGrid(c, 2, 2, 2, 1)
		if err != nil {
			return err
		}
		full, err := distmat.NewGrid(c, 0, 4, 2, 2)
		if err != nil {
			return err
		}
		src, err := distmat.FromGlobal(left, a)
		if err != nil {
			return err
		}
		mid, _ := distmat.Zeros(right, 4, 3)
		dst, _ := distmat.Zeros(full, 5, 3)

		// window to the other half, then into rows 1..4 of the full grid
		if err = distmat.Redistribute(ctx, c, distmat.Copy{
			Src: src, SrcRow: 1, SrcCol: 1, Dst: mid, Rows: 4, Cols: 3,
		}); err != nil {
			return err
		}
		if err = distmat.Redistribute(ctx, c, distmat.Copy{
			Src: mid, Dst: dst, DstRow: 1, Rows: 4, Cols: 3,
		}); err != nil {
			return err
		}
		got, err := dst.AllGather(ctx)
		if err != nil {
			return err
		}
		sub, _ := got.Block(1, 0, 4, 3)
		if err = checkEqual(want, sub, 0); err != nil {
			return err
		}
		top, _ := got.Block(0, 0, 1, 3)
		return checkEqual(matrixZeros(1, 3), top, 0)
	})
	require.NoError(t, err)
}

func matrixZeros(r, c int) *matrix.Dense {
	m, _ := matrix.NewDense(r, c)
	return m
}

// TestRedistributeBatched stacks two sources into one destination in a
// single exchange (the concatenation used by the tree engine).
func TestRedistributeBatched(t *testing.T) {
	top := randDense(3, 2, 4)
	bottom := randDense(2, 2, 5)
	want, _ := matrix.VConcat(top, bottom)

	err := comm.Run(context.Background(), 3, func(ctx context.Context, c *comm.Comm) error {
		g0, _ := distmat.NewGrid(c, 0, 1, 2, 2)
		g1, _ := distmat.NewGrid(c, 1, 2, 1, 1)
		gp, _ := distmat.NewGrid(c, 0, 3, 2, 1)
		a, err := distmat.FromGlobal(g0, top)
		if err != nil {
			return err
		}
		b, err := distmat.FromGlobal(g1, bottom)
		if err != nil {
			return err
		}
		cat, _ := distmat.Zeros(gp, 5, 2)
		if err = distmat.Redistribute(ctx, c,
			distmat.Copy{Src: a, Dst: cat, Rows: 3, Cols: 2},
			distmat.Copy{Src: b, Dst: cat, DstRow: 3, Rows: 2, Cols: 2},
		); err != nil {
			return err
		}
		got, err := cat.AllGather(ctx)
		if err != nil {
			return err
		}
		return checkEqual(want, got, 0)
	})
	require.NoError(t, err)
}

func TestRedistributeErrors(t *testing.T) {
	err := comm.Run(context.Background(), 2, func(ctx context.Context, c *comm.Comm) error {
		g, _ := distmat.NewGrid(c, 0, 2, 1, 1)
		a, _ := distmat.Zeros(g, 2, 2)
		b, _ := distmat.Zeros(g, 2, 2)
		err := distmat.Redistribute(ctx, c, distmat.Copy{Src: a, Dst: b, SrcRow: 1, Rows: 2, Cols: 2})
		if !errors.Is(err, distmat.ErrBadWindow) {
			return fmt.Errorf("want ErrBadWindow, got %v", err)
		}
		one, _ := c.Sub(c.WorldRank(), 1)
		err = distmat.Redistribute(ctx, one, distmat.Copy{Src: a, Dst: b, Rows: 1, Cols: 1})
		if !errors.Is(err, distmat.ErrNotCovered) {
			return fmt.Errorf("want ErrNotCovered, got %v", err)
		}
		return nil
	})
	require.NoError(t, err)
}

// TestGemm checks the same-grid product for every op combination.
func TestGemm(t *testing.T) {
	t.Parallel()
	a := randDense(5, 4, 6)
	b := randDense(4, 3, 7)
	c0 := randDense(5, 3, 8)
	at, _ := matrix.Transpose(a)
	bt, _ := matrix.Transpose(b)

	ref, _ := matrix.Mul(a, b)
	_ = matrix.AddInPlace(ref, 0.5, c0) // ref = A·B + 0.5·C0

	cases := []struct {
		ta, tb matrix.Op
		x, y   *matrix.Dense
	}{
		{matrix.NoTrans, matrix.NoTrans, a, b},
		{matrix.Trans, matrix.NoTrans, at, b},
		{matrix.NoTrans, matrix.ConjTrans, a, bt},
		{matrix.Trans, matrix.Trans, at, bt},
	}
	for _, p := range []int{1, 2, 4} {
		for _, tc := range cases {
			tc := tc
			err := comm.Run(context.Background(), p, func(ctx context.Context, c *comm.Comm) error {
				g, _ := distmat.NewGrid(c, 0, p, 2, 2)
				da, _ := distmat.FromGlobal(g, tc.x)
				db, _ := distmat.FromGlobal(g, tc.y)
				dc, _ := distmat.FromGlobal(g, c0)
				if _, err := distmat.Gemm(ctx, tc.ta, tc.tb, 1, da, db, 0.5, dc); err != nil {
					return err
				}
				got, err := dc.AllGather(ctx)
				if err != nil {
					return err
				}
				return checkEqual(ref, got, 1e-12)
			})
			require.NoError(t, err, "p=%d op=%v%v", p, tc.ta, tc.tb)
		}
	}
}

func TestGemmErrorsAndAdd(t *testing.T) {
	err := comm.Run(context.Background(), 2, func(ctx context.Context, c *comm.Comm) error {
		g, _ := distmat.NewGrid(c, 0, 2, 1, 1)
		h, _ := distmat.NewGrid(c, 0, 1, 1, 1)
		a, _ := distmat.Zeros(g, 2, 3)
		b, _ := distmat.Zeros(g, 2, 3)
		x, _ := distmat.Zeros(h, 2, 3)
		if _, err := distmat.Gemm(ctx, matrix.NoTrans, matrix.NoTrans, 1, a, b, 0, a); !errors.Is(err, distmat.ErrDimensionMismatch) {
			return fmt.Errorf("want ErrDimensionMismatch, got %v", err)
		}
		if err := distmat.AddInPlace(a, 1, x); !errors.Is(err, distmat.ErrGridMismatch) {
			return fmt.Errorf("want ErrGridMismatch, got %v", err)
		}
		ones := randDense(2, 3, 9)
		o, _ := distmat.FromGlobal(g, ones)
		if err := distmat.AddInPlace(b, 2, o); err != nil {
			return err
		}
		got, err := b.AllGather(ctx)
		if err != nil {
			return err
		}
		want, _ := matrix.Scale(ones, 2)
		return checkEqual(want, got, 0)
	})
	require.NoError(t, err)
}

func TestNewGridInvalid(t *testing.T) {
	w, err := comm.NewWorld(2)
	require.NoError(t, err)
	c, err := w.Comm(0)
	require.NoError(t, err)

	_, err = distmat.NewGrid(c, 0, 0, 1, 1)
	require.ErrorIs(t, err, distmat.ErrInvalidGrid)
	_, err = distmat.NewGrid(c, 0, 2, 0, 1)
	require.ErrorIs(t, err, distmat.ErrInvalidGrid)
	_, err = distmat.NewGrid(c, 1, 2, 1, 1)
	require.ErrorIs(t, err, comm.ErrInvalidRange)

	g, err := distmat.NewGrid(c, 0, 2, 3, 4)
	require.NoError(t, err)
	r, cc := g.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 1, cc)
	mb, nb := g.BlockSize()
	require.Equal(t, 3, mb)
	require.Equal(t, 4, nb)
	require.Equal(t, 1, g.Owner(3, 0))
}
