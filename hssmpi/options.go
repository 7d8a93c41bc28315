// SPDX-License-Identifier: MIT

// Package hssmpi: distribution and engine options.
package hssmpi

import (
	"log/slog"

	"github.com/katalvlaran/hss/distmat"
	"github.com/katalvlaran/hss/flops"
	"github.com/katalvlaran/hss/hss"
)

// Options holds the settings fixed at New.
type Options struct {
	// BlockSize is the block-cyclic block size used for every node grid.
	BlockSize int
	// ConsistencyCheck makes every collective phase verify that all
	// processes agree on the tree and the call arguments.
	ConsistencyCheck bool
	// PivotThreshold flags a factorization as near-singular.
	PivotThreshold float64
	Logger         *slog.Logger
	Counters       *flops.Counters
}

// Option mutates Options.
type Option func(*Options)

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		BlockSize:        distmat.DefaultBlockSize,
		ConsistencyCheck: true,
		PivotThreshold:   hss.DefaultPivotThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	return o
}

// WithBlockSize sets the block size of the node grids. Panics if nb < 1.
func WithBlockSize(nb int) Option {
	if nb < 1 {
		panic("hssmpi: WithBlockSize(nb): nb must be >= 1")
	}

	return func(o *Options) { o.BlockSize = nb }
}

// WithConsistencyCheck toggles the agreement checks (on by default).
func WithConsistencyCheck(on bool) Option {
	return func(o *Options) { o.ConsistencyCheck = on }
}

// WithPivotThreshold sets the near-singularity threshold of Factor.
// Panics if t < 0.
func WithPivotThreshold(t float64) Option {
	if t < 0 {
		panic("hssmpi: WithPivotThreshold(t): t must be >= 0")
	}

	return func(o *Options) { o.PivotThreshold = t }
}

// WithLogger routes engine logs to l; nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCounters accumulates per-process flops into c.
func WithCounters(c *flops.Counters) Option {
	return func(o *Options) { o.Counters = c }
}
