// Package matrix_test contains unit tests for the Dense implementation
// of the Matrix interface in the matrix package.
package matrix_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hss/matrix"
)

// TestNewDenseInvalidDimensions ensures that NewDense rejects negative dimensions.
func TestNewDenseInvalidDimensions(t *testing.T) {
	_, err := matrix.NewDense(-1, 5)
	require.ErrorIs(t, err, matrix.ErrInvalidDimensions)

	_, err = matrix.NewDense(5, -1)
	require.ErrorIs(t, err, matrix.ErrInvalidDimensions)
}

// TestNewDenseEmptyShapes verifies that n×0 and 0×n are legal (rank-0 generators).
func TestNewDenseEmptyShapes(t *testing.T) {
	m, err := matrix.NewDense(4, 0)
	require.NoError(t, err)
	require.Equal(t, 4, m.Rows())
	require.Equal(t, 0, m.Cols())
	require.Empty(t, m.Raw())

	m, err = matrix.NewDense(0, 3)
	require.NoError(t, err)
	require.Equal(t, 0, m.Rows())
}

// TestNewDenseFrom validates the length contract and copy semantics.
func TestNewDenseFrom(t *testing.T) {
	src := []float64{1, 2, 3, 4, 5, 6}
	m, err := matrix.NewDenseFrom(2, 3, src)
	require.NoError(t, err)
	src[0] = 99 // must not leak into m
	CompareExact(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, m)

	_, err = matrix.NewDenseFrom(2, 2, src)
	require.ErrorIs(t, err, matrix.ErrInvalidDimensions)
}

// TestAtSetOutOfBounds ensures At() and Set() return ErrOutOfRange on invalid access.
func TestAtSetOutOfBounds(t *testing.T) {
	m := MustDense(t, 2, 2)

	_, err := m.At(-1, 0)
	require.ErrorIs(t, err, matrix.ErrOutOfRange)

	_, err = m.At(0, 2)
	require.ErrorIs(t, err, matrix.ErrIndexOutOfBounds)

	err = m.Set(2, 0, 1.23)
	require.ErrorIs(t, err, matrix.ErrOutOfRange)
}

// TestSetRejectsNaNInf checks the default numeric policy.
func TestSetRejectsNaNInf(t *testing.T) {
	m := MustDense(t, 1, 1)
	require.ErrorIs(t, m.Set(0, 0, math.NaN()), matrix.ErrNaNInf)
	require.ErrorIs(t, m.Set(0, 0, math.Inf(-1)), matrix.ErrNaNInf)
}

// TestCloneIndependence ensures Clone() returns a deep copy that does not share storage.
func TestCloneIndependence(t *testing.T) {
	m := NewFilledDense(t, 2, 2, []float64{1, 0, 0, 2})
	clone := m.Clone()
	MustSet(t, clone, 0, 0, 3)

	require.Equal(t, 1.0, MustAt(t, m, 0, 0))
	require.Equal(t, 3.0, MustAt(t, clone, 0, 0))
}

// TestRowViewAliases verifies that writes through a row window reach the parent.
func TestRowViewAliases(t *testing.T) {
	m := NewFilledDense(t, 3, 2, []float64{1, 2, 3, 4, 5, 6})
	v, err := m.RowView(1, 2)
	require.NoError(t, err)
	require.Equal(t, 2, v.Rows())
	require.Equal(t, 2, v.Cols())
	require.Equal(t, 3.0, MustAt(t, v, 0, 0))

	MustSet(t, v, 1, 1, 60)
	require.Equal(t, 60.0, MustAt(t, m, 2, 1))

	_, err = m.RowView(2, 2)
	require.ErrorIs(t, err, matrix.ErrBadShape)

	empty, err := m.RowView(3, 0)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Rows())
}

// TestBlockAndInduced checks the copy-based extractors.
func TestBlockAndInduced(t *testing.T) {
	m := NewFilledDense(t, 3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})

	b, err := m.Block(1, 1, 2, 2)
	require.NoError(t, err)
	CompareExact(t, [][]float64{{5, 6}, {8, 9}}, b)

	_, err = m.Block(2, 2, 2, 1)
	require.ErrorIs(t, err, matrix.ErrBadShape)

	ind, err := m.Induced([]int{2, 0}, []int{1, 1})
	require.NoError(t, err)
	CompareExact(t, [][]float64{{8, 8}, {2, 2}}, ind)

	_, err = m.Induced([]int{3}, []int{0})
	require.ErrorIs(t, err, matrix.ErrOutOfRange)
}

// TestDoApply covers the visitor and the in-place map.
func TestDoApply(t *testing.T) {
	m := NewFilledDense(t, 2, 2, []float64{1, 2, 3, 4})
	sum := 0.0
	m.Do(func(_, _ int, v float64) bool { sum += v; return true })
	require.Equal(t, 10.0, sum)

	require.NoError(t, m.Apply(func(i, j int, v float64) float64 { return v * 2 }))
	CompareExact(t, [][]float64{{2, 4}, {6, 8}}, m)

	err := m.Apply(func(i, j int, v float64) float64 { return math.Inf(1) })
	require.ErrorIs(t, err, matrix.ErrNaNInf)
}

func TestIdentityAndString(t *testing.T) {
	id, err := matrix.Identity(2)
	require.NoError(t, err)
	require.Equal(t, "[1, 0]\n[0, 1]\n", id.String())
}
