// SPDX-License-Identifier: MIT

// Package comm: collective operations.
//
// Payloads travel by reference: a sender must not mutate a value after
// handing it to a collective, and receivers must treat received values as
// read-only unless the protocol says otherwise. Reductions are summed in
// rank order, so every member obtains bitwise identical results.
package comm

import (
	"context"
	"fmt"
)

// Barrier blocks until every member has entered it.
func (c *Comm) Barrier(ctx context.Context) error {
	if _, err := c.AllGather(ctx, nil); err != nil {
		return commErrorf("Barrier", err)
	}

	return nil
}

// Bcast distributes root's v to all members and returns it.
// Non-root callers' v is ignored.
func (c *Comm) Bcast(ctx context.Context, root int, v any) (any, error) {
	if root < 0 || root >= c.Size() {
		return nil, commErrorf("Bcast", ErrInvalidRank)
	}
	seq := c.next()
	if c.Rank() == root {
		for dst := 0; dst < c.Size(); dst++ {
			if dst != root {
				c.send(seq, dst, v)
			}
		}
		return v, nil
	}
	got, err := c.recv(ctx, seq, root)
	if err != nil {
		return nil, commErrorf("Bcast", err)
	}

	return got, nil
}

// AllGather returns every member's v indexed by rank.
func (c *Comm) AllGather(ctx context.Context, v any) ([]any, error) {
	seq := c.next()
	me := c.Rank()
	for dst := 0; dst < c.Size(); dst++ {
		if dst != me {
			c.send(seq, dst, v)
		}
	}
	out := make([]any, c.Size())
	out[me] = v
	for src := 0; src < c.Size(); src++ {
		if src == me {
			continue
		}
		got, err := c.recv(ctx, seq, src)
		if err != nil {
			return nil, commErrorf("AllGather", err)
		}
		out[src] = got
	}

	return out, nil
}

// AllToAll sends out[i] to rank i and returns the values received, indexed
// by source rank.
// Errors: ErrLengthMismatch when len(out) != Size().
func (c *Comm) AllToAll(ctx context.Context, out []any) ([]any, error) {
	if len(out) != c.Size() {
		return nil, commErrorf("AllToAll", fmt.Errorf("%d payloads for %d ranks: %w", len(out), c.Size(), ErrLengthMismatch))
	}
	seq := c.next()
	me := c.Rank()
	for dst := 0; dst < c.Size(); dst++ {
		if dst != me {
			c.send(seq, dst, out[dst])
		}
	}
	in := make([]any, c.Size())
	in[me] = out[me]
	for src := 0; src < c.Size(); src++ {
		if src == me {
			continue
		}
		got, err := c.recv(ctx, seq, src)
		if err != nil {
			return nil, commErrorf("AllToAll", err)
		}
		in[src] = got
	}

	return in, nil
}

// ReduceSum sums vals element-wise over all members into root. Root gets the
// sum; other members get nil.
// Errors: ErrInvalidRank, ErrLengthMismatch.
func (c *Comm) ReduceSum(ctx context.Context, root int, vals []float64) ([]float64, error) {
	if root < 0 || root >= c.Size() {
		return nil, commErrorf("ReduceSum", ErrInvalidRank)
	}
	seq := c.next()
	if c.Rank() != root {
		c.send(seq, root, append([]float64(nil), vals...))
		return nil, nil
	}
	parts := make([][]float64, c.Size())
	parts[root] = vals
	for src := 0; src < c.Size(); src++ {
		if src == root {
			continue
		}
		got, err := c.recv(ctx, seq, src)
		if err != nil {
			return nil, commErrorf("ReduceSum", err)
		}
		parts[src] = got.([]float64)
	}
	sum, err := sumInOrder(parts, len(vals))
	if err != nil {
		return nil, commErrorf("ReduceSum", err)
	}

	return sum, nil
}

// AllReduceSum sums vals element-wise and returns the sum on every member.
func (c *Comm) AllReduceSum(ctx context.Context, vals []float64) ([]float64, error) {
	all, err := c.AllGather(ctx, append([]float64(nil), vals...))
	if err != nil {
		return nil, commErrorf("AllReduceSum", err)
	}
	parts := make([][]float64, len(all))
	for i, v := range all {
		parts[i] = v.([]float64)
	}
	sum, err := sumInOrder(parts, len(vals))
	if err != nil {
		return nil, commErrorf("AllReduceSum", err)
	}

	return sum, nil
}

func sumInOrder(parts [][]float64, n int) ([]float64, error) {
	sum := make([]float64, n)
	for _, p := range parts {
		if len(p) != n {
			return nil, ErrLengthMismatch
		}
		for i, v := range p {
			sum[i] += v
		}
	}

	return sum, nil
}

// Agree checks that every member passed the same v. All members return
// ErrDisagreement together when they do not, so no member is left waiting
// in a later collective.
func (c *Comm) Agree(ctx context.Context, v uint64) error {
	all, err := c.AllGather(ctx, v)
	if err != nil {
		return commErrorf("Agree", err)
	}
	for r, got := range all {
		if got.(uint64) != v {
			return commErrorf("Agree", fmt.Errorf("rank %d holds %#x, rank %d holds %#x: %w",
				r, got.(uint64), c.Rank(), v, ErrDisagreement))
		}
	}

	return nil
}
