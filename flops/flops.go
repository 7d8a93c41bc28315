// SPDX-License-Identifier: MIT

// Package flops: per-phase floating point operation counters.
//
// Design goals:
//   - No hidden singletons: a *Counters is created by the caller, reset at run
//     start, passed by reference into the engines and reduced at run end.
//   - Lock-free: every phase is an atomic.Int64, safe under fork/join tasks.
//   - Diagnostic only: counters never influence control flow or results.
package flops

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/katalvlaran/hss/comm"
)

// Phase names an algorithmic phase whose work is counted.
type Phase int

const (
	Random       Phase = iota // random sampling
	ID                        // interpolative decomposition
	QR                        // QR factorizations
	Ortho                     // orthogonalization
	ReduceSample              // sample reduction
	UpdateSample              // sample update
	Extraction                // element extraction
	CBSample                  // contribution-block sampling
	SparseSample              // sparse sampling
	ULVFactor                 // hierarchical factorization
	Schur                     // Schur complement updates
	FullRank                  // dense fallback

	NumPhases = int(FullRank) + 1
)

var phaseNames = [NumPhases]string{
	"random", "id", "qr", "ortho", "reduce_sample", "update_sample",
	"extraction", "cb_sample", "sparse_sample", "ulv_factor", "schur", "full_rank",
}

// String returns the snake_case metric label of p.
func (p Phase) String() string {
	if p < 0 || int(p) >= NumPhases {
		return fmt.Sprintf("phase(%d)", int(p))
	}

	return phaseNames[p]
}

// Phases returns all phases in declaration order.
func Phases() []Phase {
	ps := make([]Phase, NumPhases)
	for i := range ps {
		ps[i] = Phase(i)
	}

	return ps
}

// Counters accumulates flops per phase. The zero value is ready to use.
// A nil *Counters silently discards Add calls.
type Counters struct {
	c [NumPhases]atomic.Int64
}

// New returns zeroed counters.
func New() *Counters { return &Counters{} }

// Add accumulates n flops into phase p.
func (c *Counters) Add(p Phase, n int64) {
	if c == nil || n == 0 {
		return
	}
	c.c[p].Add(n)
}

// Load returns the current count of p.
func (c *Counters) Load(p Phase) int64 {
	if c == nil {
		return 0
	}

	return c.c[p].Load()
}

// Reset zeroes every phase.
func (c *Counters) Reset() {
	for i := range c.c {
		c.c[i].Store(0)
	}
}

// Snapshot is a point-in-time copy of all phases, indexed by Phase.
type Snapshot [NumPhases]int64

// Snapshot copies the current counts.
// Phases are read one by one; concurrent Adds may land between reads.
func (c *Counters) Snapshot() Snapshot {
	var s Snapshot
	if c == nil {
		return s
	}
	for i := range c.c {
		s[i] = c.c[i].Load()
	}

	return s
}

// Reduce sums every member's counters into root of cm. Root receives the
// total; other members receive a zero Snapshot. Collective.
func (c *Counters) Reduce(ctx context.Context, cm *comm.Comm, root int) (Snapshot, error) {
	local := c.Snapshot()
	vals := make([]float64, NumPhases)
	for i, v := range local {
		vals[i] = float64(v)
	}
	sum, err := cm.ReduceSum(ctx, root, vals)
	if err != nil {
		return Snapshot{}, fmt.Errorf("flops.Reduce: %w", err)
	}
	var out Snapshot
	for i, v := range sum {
		out[i] = int64(v)
	}

	return out, nil
}

// Summary is the flop breakdown with the usual rollups.
type Summary struct {
	Snapshot
	Sampling    int64 // CBSample + SparseSample
	Compression int64 // Random .. Extraction + Sampling
	Total       int64 // Compression + ULVFactor + Schur + FullRank
}

// Summarize computes the rollups of s.
func (s Snapshot) Summarize() Summary {
	sum := Summary{Snapshot: s}
	sum.Sampling = s[CBSample] + s[SparseSample]
	sum.Compression = s[Random] + s[ID] + s[QR] + s[Ortho] +
		s[ReduceSample] + s[UpdateSample] + s[Extraction] + sum.Sampling
	sum.Total = sum.Compression + s[ULVFactor] + s[Schur] + s[FullRank]

	return sum
}

// String renders the breakdown as an indented report.
func (s Summary) String() string {
	var b strings.Builder
	line := func(indent int, name string, v int64) {
		fmt.Fprintf(&b, "%s%-20s = %d\n", strings.Repeat("  ", indent), name, v)
	}
	b.WriteString("# ----- FLOP BREAKDOWN -----\n")
	line(0, "compression", s.Compression)
	for _, p := range []Phase{Random, ID, QR, Ortho, ReduceSample, UpdateSample, Extraction} {
		line(1, p.String(), s.Snapshot[p])
	}
	line(1, "sampling", s.Sampling)
	line(2, CBSample.String(), s.Snapshot[CBSample])
	line(2, SparseSample.String(), s.Snapshot[SparseSample])
	line(0, ULVFactor.String(), s.Snapshot[ULVFactor])
	line(0, Schur.String(), s.Snapshot[Schur])
	line(0, FullRank.String(), s.Snapshot[FullRank])
	line(0, "total", s.Total)

	return b.String()
}
