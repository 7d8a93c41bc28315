// SPDX-License-Identifier: MIT

// Package comm: sentinel errors.
//
// Callers match with errors.Is; context is added by the collective that
// failed ("comm.AllGather: ...").
package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned when a world or communicator has size < 1.
	ErrInvalidSize = errors.New("comm: invalid size")

	// ErrInvalidRange is returned by Sub when the requested rank range is not
	// contained in the parent communicator.
	ErrInvalidRange = errors.New("comm: rank range outside communicator")

	// ErrInvalidRank is returned when a root or peer rank is outside [0, Size()).
	ErrInvalidRank = errors.New("comm: invalid rank")

	// ErrLengthMismatch is returned when per-rank payload slices disagree in length.
	ErrLengthMismatch = errors.New("comm: payload length mismatch")

	// ErrDisagreement is returned by Agree when members hold different values.
	ErrDisagreement = errors.New("comm: members disagree")
)

// commErrorf wraps err with the collective name.
func commErrorf(op string, err error) error {
	return fmt.Errorf("comm.%s: %w", op, err)
}
