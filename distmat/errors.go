// SPDX-License-Identifier: MIT

// Package distmat: sentinel errors.
package distmat

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGrid is returned for empty rank ranges or non-positive block sizes.
	ErrInvalidGrid = errors.New("distmat: invalid process grid")

	// ErrNotCovered is returned when a communicator does not contain every
	// rank a redistribution has to talk to.
	ErrNotCovered = errors.New("distmat: communicator does not cover grid")

	// ErrGridMismatch is returned when operands of a same-grid operation live
	// on different grids.
	ErrGridMismatch = errors.New("distmat: operands on different grids")

	// ErrDimensionMismatch is returned for incompatible global shapes.
	ErrDimensionMismatch = errors.New("distmat: dimension mismatch")

	// ErrBadWindow is returned when a redistribution window leaves its matrix.
	ErrBadWindow = errors.New("distmat: window outside matrix")
)

func distErrorf(op string, err error) error {
	return fmt.Errorf("distmat.%s: %w", op, err)
}
