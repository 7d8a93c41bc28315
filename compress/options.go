// SPDX-License-Identifier: MIT

// Package compress: compression options and their YAML form.
//
// A document may set any subset of the keys; the rest keep their defaults:
//
//	rel_tol: 1e-4
//	abs_tol: 1e-10
//	leaf_size: 128
//	max_rank: 5000
//	low_rank_algorithm: RRQR   # or ACA
//	admissibility: strong      # or weak
//	verbose: true
package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultRelTol        = 1e-4
	DefaultAbsTol        = 1e-10
	DefaultLeafSize      = 128
	DefaultMaxRank       = 5000
	DefaultAlgorithm     = RRQR
	DefaultAdmissibility = Strong
	DefaultVerbose       = true
)

// LowRankAlgorithm selects how off-diagonal blocks are compressed.
type LowRankAlgorithm int

const (
	RRQR LowRankAlgorithm = iota // rank-revealing QR
	ACA                          // adaptive cross approximation
)

var algorithmNames = map[LowRankAlgorithm]string{RRQR: "RRQR", ACA: "ACA"}

// String returns the canonical name, "unknown" otherwise.
func (a LowRankAlgorithm) String() string {
	if s, ok := algorithmNames[a]; ok {
		return s
	}

	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (a LowRankAlgorithm) MarshalText() ([]byte, error) {
	if _, ok := algorithmNames[a]; !ok {
		return nil, fmt.Errorf("low-rank algorithm %d: %w", int(a), ErrInvalidOption)
	}

	return []byte(a.String()), nil
}

// UnmarshalText accepts the names printed by String.
func (a *LowRankAlgorithm) UnmarshalText(b []byte) error {
	for k, s := range algorithmNames {
		if s == string(b) {
			*a = k
			return nil
		}
	}

	return fmt.Errorf("low-rank algorithm %q, use RRQR or ACA: %w", b, ErrInvalidOption)
}

// Admissibility selects which blocks may be compressed.
type Admissibility int

const (
	Strong Admissibility = iota // only well-separated blocks
	Weak                        // every off-diagonal block
)

var admissibilityNames = map[Admissibility]string{Strong: "strong", Weak: "weak"}

// String returns the canonical name, "unknown" otherwise.
func (a Admissibility) String() string {
	if s, ok := admissibilityNames[a]; ok {
		return s
	}

	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (a Admissibility) MarshalText() ([]byte, error) {
	if _, ok := admissibilityNames[a]; !ok {
		return nil, fmt.Errorf("admissibility %d: %w", int(a), ErrInvalidOption)
	}

	return []byte(a.String()), nil
}

// UnmarshalText accepts the names printed by String.
func (a *Admissibility) UnmarshalText(b []byte) error {
	for k, s := range admissibilityNames {
		if s == string(b) {
			*a = k
			return nil
		}
	}

	return fmt.Errorf("admissibility %q, use weak or strong: %w", b, ErrInvalidOption)
}

// Options configures compression.
type Options struct {
	RelTol           float64          `yaml:"rel_tol"`
	AbsTol           float64          `yaml:"abs_tol"`
	LeafSize         int              `yaml:"leaf_size"`
	MaxRank          int              `yaml:"max_rank"`
	LowRankAlgorithm LowRankAlgorithm `yaml:"low_rank_algorithm"`
	Admissibility    Admissibility    `yaml:"admissibility"`
	Verbose          bool             `yaml:"verbose"`
}

// DefaultOptions returns the defaults above.
func DefaultOptions() Options {
	return Options{
		RelTol:           DefaultRelTol,
		AbsTol:           DefaultAbsTol,
		LeafSize:         DefaultLeafSize,
		MaxRank:          DefaultMaxRank,
		LowRankAlgorithm: DefaultAlgorithm,
		Admissibility:    DefaultAdmissibility,
		Verbose:          DefaultVerbose,
	}
}

// Validate checks ranges and support.
// Errors: ErrInvalidOption, ErrNotSupported (ACA).
func (o Options) Validate() error {
	switch {
	case o.RelTol < 0 || o.RelTol > 1:
		return fmt.Errorf("rel_tol %g outside [0, 1]: %w", o.RelTol, ErrInvalidOption)
	case o.AbsTol < 0:
		return fmt.Errorf("abs_tol %g < 0: %w", o.AbsTol, ErrInvalidOption)
	case o.LeafSize < 1:
		return fmt.Errorf("leaf_size %d < 1: %w", o.LeafSize, ErrInvalidOption)
	case o.MaxRank < 1:
		return fmt.Errorf("max_rank %d < 1: %w", o.MaxRank, ErrInvalidOption)
	case o.Admissibility.String() == "unknown":
		return fmt.Errorf("admissibility %d: %w", int(o.Admissibility), ErrInvalidOption)
	}
	switch o.LowRankAlgorithm {
	case RRQR:
		return nil
	case ACA:
		return fmt.Errorf("low_rank_algorithm ACA: %w", ErrNotSupported)
	default:
		return fmt.Errorf("low_rank_algorithm %d: %w", int(o.LowRankAlgorithm), ErrInvalidOption)
	}
}

// Parse reads a YAML document over the defaults and validates the result.
// Unknown keys are rejected; an empty document yields the defaults.
func Parse(data []byte) (Options, error) {
	o := DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return o, fmt.Errorf("compress.Parse: %w", err)
	}
	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("compress.Parse: %w", err)
	}

	return o, nil
}

// Load parses the YAML file at path.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultOptions(), fmt.Errorf("compress.Load: %w", err)
	}

	return Parse(data)
}

// Marshal renders o as YAML.
func (o Options) Marshal() ([]byte, error) {
	return yaml.Marshal(o)
}
