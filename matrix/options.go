// SPDX-License-Identifier: MIT

// Package matrix: numeric policy defaults.
//
// Design goals:
//   - Deterministic behavior: no global mutable state, no implicit randomness.
//   - Single source of truth for tolerances used by comparisons in this package
//     and by structured consumers (hss, distmat) in their verification helpers.
package matrix

// Numeric policy.
const (
	// DefaultEpsilon defines the non-negative tolerance used by EqualApprox.
	DefaultEpsilon = 1e-9

	// DefaultValidateNaNInf toggles strict finite-value validation on Set/Apply.
	// Kernels (Gemm, LU) write through the raw buffer and are not policed.
	DefaultValidateNaNInf = true
)
