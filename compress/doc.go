// Package compress holds the settings that drive HSS and block low-rank
// compression: tolerances, leaf size, rank cap, the low-rank algorithm and
// the admissibility condition.
//
// Options load from YAML (Parse, Load) over DefaultOptions and are checked by
// Validate. Only rank-revealing QR is implemented; ACA is accepted by the
// parser and rejected by Validate with ErrNotSupported.
package compress
