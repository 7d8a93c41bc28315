// SPDX-License-Identifier: MIT

// Package compress: sentinel errors.
package compress

import "errors"

var (
	// ErrInvalidOption indicates an out-of-range value or an unknown name.
	ErrInvalidOption = errors.New("compress: invalid option")

	// ErrNotSupported indicates a recognized setting with no implementation.
	ErrNotSupported = errors.New("compress: not supported")
)
