// SPDX-License-Identifier: MIT

// Package hss: sentinel error set.
// Facades wrap with fmt.Errorf("Op: %w", ErrX); callers match with errors.Is.
package hss

import (
	"errors"
	"fmt"
)

var (
	// ErrNilNode indicates a nil tree, child or required block.
	ErrNilNode = errors.New("hss: nil node")

	// ErrBadGenerator indicates inconsistent generator or transfer block shapes
	// at construction time.
	ErrBadGenerator = errors.New("hss: inconsistent generator shapes")

	// ErrSharedChild indicates that the same subtree was passed twice;
	// children are exclusively owned.
	ErrSharedChild = errors.New("hss: child shared between parents")

	// ErrDimensionMismatch indicates that an input or output matrix does not
	// match the tree. Reported before any recursion starts.
	ErrDimensionMismatch = errors.New("hss: dimension mismatch")

	// ErrNonSquare indicates that factorization was requested for a tree with a
	// non-square node.
	ErrNonSquare = errors.New("hss: non-square block")

	// ErrFactorMismatch indicates that a factorization is used with a tree it
	// was not computed from.
	ErrFactorMismatch = errors.New("hss: factorization belongs to another tree")

	// ErrInvalidSize indicates a non-positive size or leaf size in Random.
	ErrInvalidSize = errors.New("hss: invalid size")
)

func hssErrorf(op string, err error) error {
	return fmt.Errorf("hss.%s: %w", op, err)
}
