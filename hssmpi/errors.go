// SPDX-License-Identifier: MIT

// Package hssmpi: sentinel error set.
package hssmpi

import (
	"errors"
	"fmt"
)

var (
	// ErrNilTree indicates a nil tree, communicator, operand or factorization.
	ErrNilTree = errors.New("hssmpi: nil argument")

	// ErrDimensionMismatch indicates that a distributed operand does not match
	// the tree. Every process detects it from global shapes, before any
	// communication.
	ErrDimensionMismatch = errors.New("hssmpi: dimension mismatch")

	// ErrInconsistent indicates that the processes of a communicator disagree
	// on the tree, the call arguments or a branch choice. All processes of
	// the communicator return it together.
	ErrInconsistent = errors.New("hssmpi: processes disagree")

	// ErrFactorMismatch indicates that a factorization is used with another
	// distributed matrix.
	ErrFactorMismatch = errors.New("hssmpi: factorization belongs to another matrix")
)

func mpiErrorf(op string, err error) error {
	return fmt.Errorf("hssmpi.%s: %w", op, err)
}
