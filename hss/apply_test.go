// SPDX-License-Identifier: MIT
package hss_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/hss/hss"
	"github.com/katalvlaran/hss/matrix"
)

// ApplySuite checks the apply engine against dense reconstruction for a
// family of tree shapes.
type ApplySuite struct {
	suite.Suite
	trees map[string]*hss.Matrix
}

func (s *ApplySuite) SetupSuite() {
	t := s.T()
	s.trees = map[string]*hss.Matrix{
		"two-leaf":       TwoLeaf(t),
		"single-leaf":    RandomTree(t, 7, 8, 2, 1),
		"balanced":       RandomTree(t, 64, 8, 4, 2),
		"uneven":         RandomTree(t, 77, 5, 3, 3),
		"rank-0":         RandomTree(t, 40, 6, 0, 4),
		"rank-capped":    RandomTree(t, 33, 2, 6, 5),
		"deep-tiny-leaf": RandomTree(t, 50, 1, 1, 6),
	}
}

func (s *ApplySuite) TestApplyMatchesDense() {
	for name, h := range s.trees {
		a, err := h.Dense()
		s.Require().NoError(err)
		for _, nrhs := range []int{1, 3} {
			b := RandomDense(s.T(), h.Cols(), nrhs, 11)
			want, err := matrix.Mul(a, b)
			s.Require().NoError(err)
			got, err := h.Apply(b)
			s.Require().NoError(err, name)
			AllClose(s.T(), want, got, 1e-10)
		}
	}
}

func (s *ApplySuite) TestApplyCMatchesDense() {
	for name, h := range s.trees {
		a, err := h.Dense()
		s.Require().NoError(err)
		b := RandomDense(s.T(), h.Rows(), 2, 12)
		want, err := matrix.MulOp(matrix.ConjTrans, matrix.NoTrans, a, b)
		s.Require().NoError(err)
		got, err := h.ApplyC(b)
		s.Require().NoError(err, name)
		AllClose(s.T(), want, got, 1e-10)
	}
}

// TestAdjointIdentity checks ⟨A·B, C⟩ = ⟨B, Aᴴ·C⟩.
func (s *ApplySuite) TestAdjointIdentity() {
	for name, h := range s.trees {
		b := RandomDense(s.T(), h.Cols(), 2, 13)
		c := RandomDense(s.T(), h.Rows(), 2, 14)
		ab, err := h.Apply(b)
		s.Require().NoError(err)
		ahc, err := h.ApplyC(c)
		s.Require().NoError(err)
		lhs, err := matrix.Dot(ab, c)
		s.Require().NoError(err)
		rhs, err := matrix.Dot(b, ahc)
		s.Require().NoError(err)
		s.Require().InDelta(lhs, rhs, 1e-9*max(1, lhs, -lhs), name)
	}
}

// TestDeterministicAcrossTaskDepth checks bitwise equality of parallel and
// sequential runs.
func (s *ApplySuite) TestDeterministicAcrossTaskDepth() {
	for name, h := range s.trees {
		b := RandomDense(s.T(), h.Cols(), 4, 15)
		seq, err := h.Apply(b, hss.WithTaskDepth(0))
		s.Require().NoError(err)
		par, err := h.Apply(b, hss.WithTaskDepth(8))
		s.Require().NoError(err)
		s.Require().Equal(seq.Raw(), par.Raw(), name)

		seqC, err := h.ApplyC(b, hss.WithTaskDepth(0))
		s.Require().NoError(err)
		parC, err := h.ApplyC(b, hss.WithTaskDepth(3))
		s.Require().NoError(err)
		s.Require().Equal(seqC.Raw(), parC.Raw(), name)
	}
}

// TestAccumulate checks β semantics: twice with β=1 on zero C is 2·A·B.
func (s *ApplySuite) TestAccumulate() {
	for name, h := range s.trees {
		b := RandomDense(s.T(), h.Cols(), 2, 16)
		once, err := h.Apply(b)
		s.Require().NoError(err)
		c, err := matrix.NewDense(h.Rows(), 2)
		s.Require().NoError(err)
		for i := 0; i < 2; i++ {
			_, err = h.ApplyInto(matrix.NoTrans, b, 1, c)
			s.Require().NoError(err, name)
		}
		twice, err := matrix.Scale(once, 2)
		s.Require().NoError(err)
		AllClose(s.T(), twice, c, 1e-14)

		// β = 0 discards whatever C held
		_, err = h.ApplyInto(matrix.NoTrans, b, 0, c)
		s.Require().NoError(err)
		AllClose(s.T(), once, c, 1e-14)
	}
}

func (s *ApplySuite) TestFlopsReported() {
	h := s.trees["balanced"]
	b := RandomDense(s.T(), h.Cols(), 1, 17)
	c, _ := matrix.NewDense(h.Rows(), 1)
	f, err := h.ApplyInto(matrix.NoTrans, b, 0, c)
	s.Require().NoError(err)
	// at least the leaf D·B products
	s.Require().GreaterOrEqual(f, int64(2*h.Rows()*8))
}

func TestApplySuite(t *testing.T) {
	suite.Run(t, new(ApplySuite))
}

// TestTwoLeafByHand compares against values worked out on paper.
func TestTwoLeafByHand(t *testing.T) {
	t.Parallel()
	h := TwoLeaf(t)
	b := MustDense(t, 4, 1, 1, 2, 3, 4)

	c, err := h.Apply(b)
	require.NoError(t, err)
	AllClose(t, MustDense(t, 4, 1, 11, 11, 45, 59), c, 1e-12)

	ct, err := h.ApplyC(b)
	require.NoError(t, err)
	AllClose(t, MustDense(t, 4, 1, 7, 31, 45, 50), ct, 1e-12)
}

// TestSingleLeafRankZero: the engine reduces to D·B exactly.
func TestSingleLeafRankZero(t *testing.T) {
	d := RandomDense(t, 6, 6, 21)
	h, err := hss.NewLeaf(d, nil, nil)
	require.NoError(t, err)
	b := RandomDense(t, 6, 3, 22)
	want, err := matrix.Mul(d, b)
	require.NoError(t, err)
	got, err := h.Apply(b)
	require.NoError(t, err)
	require.Equal(t, want.Raw(), got.Raw())
}

// TestRectangularLeaves covers non-square nodes.
func TestRectangularLeaves(t *testing.T) {
	l0, err := hss.NewLeaf(RandomDense(t, 3, 2, 31), RandomDense(t, 3, 1, 32), RandomDense(t, 2, 2, 33))
	require.NoError(t, err)
	l1, err := hss.NewLeaf(RandomDense(t, 2, 4, 34), RandomDense(t, 2, 2, 35), RandomDense(t, 4, 1, 36))
	require.NoError(t, err)
	h, err := hss.NewInternal(nil, nil, RandomDense(t, 1, 1, 37), RandomDense(t, 2, 2, 38), l0, l1)
	require.NoError(t, err)
	a, err := h.Dense()
	require.NoError(t, err)
	require.Equal(t, 5, a.Rows())
	require.Equal(t, 6, a.Cols())

	b := RandomDense(t, 6, 2, 39)
	want, _ := matrix.Mul(a, b)
	got, err := h.Apply(b)
	require.NoError(t, err)
	AllClose(t, want, got, 1e-12)

	bc := RandomDense(t, 5, 2, 40)
	wantC, _ := matrix.MulOp(matrix.ConjTrans, matrix.NoTrans, a, bc)
	gotC, err := h.ApplyC(bc)
	require.NoError(t, err)
	AllClose(t, wantC, gotC, 1e-12)
}

// TestRankZeroInternalNode exercises the coupling-only branch below the root.
func TestRankZeroInternalNode(t *testing.T) {
	leaf := func(seed int64) *hss.Matrix {
		l, err := hss.NewLeaf(RandomDense(t, 2, 2, seed), RandomDense(t, 2, 1, seed+1), RandomDense(t, 2, 1, seed+2))
		require.NoError(t, err)
		return l
	}
	// left subtree has rank-0 generators, so its children see only B01/B10
	left, err := hss.NewInternal(nil, nil, RandomDense(t, 1, 1, 50), RandomDense(t, 1, 1, 51), leaf(52), leaf(55))
	require.NoError(t, err)
	right := leaf(58)
	root, err := hss.NewInternal(nil, nil, nil, RandomDense(t, 1, 0, 60), left, right)
	require.NoError(t, err)

	a, err := root.Dense()
	require.NoError(t, err)
	b := RandomDense(t, 6, 2, 61)
	want, _ := matrix.Mul(a, b)
	got, err := root.Apply(b)
	require.NoError(t, err)
	AllClose(t, want, got, 1e-12)
}

func TestApplyDimensionMismatch(t *testing.T) {
	h := TwoLeaf(t)
	_, err := h.Apply(RandomDense(t, 3, 1, 1))
	require.ErrorIs(t, err, hss.ErrDimensionMismatch)

	_, err = h.ApplyInto(matrix.NoTrans, RandomDense(t, 4, 2, 1), 0, RandomDense(t, 4, 1, 2))
	require.ErrorIs(t, err, hss.ErrDimensionMismatch)

	_, err = h.ApplyInto(matrix.Op('Q'), RandomDense(t, 4, 1, 1), 0, RandomDense(t, 4, 1, 2))
	require.ErrorIs(t, err, matrix.ErrUnknownOp)

	_, err = h.Apply(nil)
	require.ErrorIs(t, err, hss.ErrNilNode)

	// C is untouched on error
	c := RandomDense(t, 4, 2, 3)
	before := c.Copy()
	_, err = h.ApplyInto(matrix.NoTrans, RandomDense(t, 5, 2, 4), 1, c)
	require.ErrorIs(t, err, hss.ErrDimensionMismatch)
	require.Equal(t, before.Raw(), c.Raw())
}

func TestApplyLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := TwoLeaf(t).Apply(MustDense(t, 4, 1, 1, 2, 3, 4), hss.WithLogger(logger))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "hss apply")
	require.Contains(t, buf.String(), "nrhs=1")
}

func TestOptionPanics(t *testing.T) {
	require.Panics(t, func() { hss.WithTaskDepth(-1) })
	require.Panics(t, func() { hss.WithPivotThreshold(-1) })
	o := hss.NewOptions(hss.WithLogger(nil))
	require.NotNil(t, o.Logger)
	require.Equal(t, hss.DefaultTaskDepth, o.TaskDepth)
}
