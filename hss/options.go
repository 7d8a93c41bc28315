// SPDX-License-Identifier: MIT

// Package hss: engine options.
//
// Options configure one apply/factor/solve call; the tree itself carries no
// engine state. Defaults are the single source of truth below.
package hss

import (
	"log/slog"

	"github.com/katalvlaran/hss/flops"
)

const (
	// DefaultTaskDepth is the recursion depth below which child subtrees run
	// as concurrent tasks. Deeper levels run inline.
	DefaultTaskDepth = 8

	// DefaultPivotThreshold flags a factorization as near-singular when
	// min|u_ii| / max|u_ii| of any LU falls below it.
	DefaultPivotThreshold = 1e-13
)

// Options holds engine settings. Build with NewOptions.
type Options struct {
	TaskDepth      int
	PivotThreshold float64
	Logger         *slog.Logger
	Counters       *flops.Counters
}

// Option mutates Options.
type Option func(*Options)

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		TaskDepth:      DefaultTaskDepth,
		PivotThreshold: DefaultPivotThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// WithTaskDepth sets the task recursion cutoff; 0 runs everything inline.
// Panics if d < 0.
func WithTaskDepth(d int) Option {
	if d < 0 {
		panic("hss: WithTaskDepth(d): d must be >= 0")
	}

	return func(o *Options) { o.TaskDepth = d }
}

// WithPivotThreshold sets the near-singularity threshold of Factor.
// Panics if t < 0.
func WithPivotThreshold(t float64) Option {
	if t < 0 {
		panic("hss: WithPivotThreshold(t): t must be >= 0")
	}

	return func(o *Options) { o.PivotThreshold = t }
}

// WithLogger routes engine logs to l; nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCounters accumulates factorization flops into c (ULVFactor, Schur).
func WithCounters(c *flops.Counters) Option {
	return func(o *Options) { o.Counters = c }
}
