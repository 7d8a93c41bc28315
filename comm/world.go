// SPDX-License-Identifier: MIT

// Package comm: world, communicators and the point-to-point mailbox.
//
// A World is a fixed set of ranks living in one process. Each rank is driven
// by exactly one goroutine, which owns that rank's *Comm handles. Messages are
// addressed by (communicator range, collective sequence, source, destination);
// every address is used once, so a one-slot buffered channel per address is
// enough and a send never blocks.
package comm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// span is a contiguous range of world ranks [lo, lo+size).
type span struct{ lo, size int }

// envelope addresses one message.
type envelope struct {
	span     span
	seq      uint64
	src, dst int // world ranks
}

// World is the shared message fabric of an in-process run.
type World struct {
	size  int
	ranks []*rankState

	mu    sync.Mutex
	boxes map[envelope]chan any
}

// rankState is confined to the goroutine driving one rank.
type rankState struct {
	rank  int
	comms map[span]*Comm
}

// Comm is one rank's handle on a contiguous range of world ranks.
//
// A Comm is NOT safe for concurrent use: it belongs to the goroutine that
// drives its rank. All members of a communicator must call the same
// collectives in the same order.
type Comm struct {
	world *World
	state *rankState
	span  span
	seq   uint64
}

// NewWorld creates a world of size ranks.
// Errors: ErrInvalidSize when size < 1.
func NewWorld(size int) (*World, error) {
	if size < 1 {
		return nil, fmt.Errorf("comm.NewWorld(%d): %w", size, ErrInvalidSize)
	}
	w := &World{
		size:  size,
		ranks: make([]*rankState, size),
		boxes: make(map[envelope]chan any),
	}
	for r := range w.ranks {
		w.ranks[r] = &rankState{rank: r, comms: make(map[span]*Comm)}
	}

	return w, nil
}

// Size returns the number of ranks in the world.
func (w *World) Size() int { return w.size }

// Comm returns rank's handle on the whole world. Repeated calls return the
// same handle.
// Errors: ErrInvalidRank.
func (w *World) Comm(rank int) (*Comm, error) {
	if rank < 0 || rank >= w.size {
		return nil, fmt.Errorf("comm.World.Comm(%d): %w", rank, ErrInvalidRank)
	}

	return w.ranks[rank].comm(w, span{0, w.size}), nil
}

// comm returns the cached handle for sp, creating it on first use so that
// every request for the same range shares one collective sequence.
func (s *rankState) comm(w *World, sp span) *Comm {
	if c, ok := s.comms[sp]; ok {
		return c
	}
	c := &Comm{world: w, state: s, span: sp}
	s.comms[sp] = c

	return c
}

// Run starts one goroutine per rank of a fresh world and waits for all of
// them. The first error cancels the context handed to the others, which
// unblocks any rank waiting in a collective.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c *Comm) error) error {
	w, err := NewWorld(size)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < size; r++ {
		c, _ := w.Comm(r)
		g.Go(func() error { return fn(gctx, c) })
	}

	return g.Wait()
}

// box returns the mailbox for e, creating it if needed.
func (w *World) box(e envelope) chan any {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.boxes[e]
	if !ok {
		ch = make(chan any, 1)
		w.boxes[e] = ch
	}

	return ch
}

// drop forgets a consumed mailbox.
func (w *World) drop(e envelope) {
	w.mu.Lock()
	delete(w.boxes, e)
	w.mu.Unlock()
}

// Rank returns the caller's rank within the communicator.
func (c *Comm) Rank() int { return c.state.rank - c.span.lo }

// Size returns the number of ranks in the communicator.
func (c *Comm) Size() int { return c.span.size }

// WorldRank returns the caller's rank in the world.
func (c *Comm) WorldRank() int { return c.state.rank }

// Lo returns the world rank of the communicator's rank 0.
func (c *Comm) Lo() int { return c.span.lo }

// Contains reports whether worldRank is a member.
func (c *Comm) Contains(worldRank int) bool {
	return worldRank >= c.span.lo && worldRank < c.span.lo+c.span.size
}

// Sub returns the caller's handle on world ranks [lo, lo+size), which must
// lie inside c. It returns (nil, nil) when the caller is not a member.
// Errors: ErrInvalidSize, ErrInvalidRange.
func (c *Comm) Sub(lo, size int) (*Comm, error) {
	if size < 1 {
		return nil, fmt.Errorf("comm.Sub(%d,%d): %w", lo, size, ErrInvalidSize)
	}
	if lo < c.span.lo || lo+size > c.span.lo+c.span.size {
		return nil, fmt.Errorf("comm.Sub(%d,%d): %w", lo, size, ErrInvalidRange)
	}
	sp := span{lo, size}
	if c.state.rank < lo || c.state.rank >= lo+size {
		return nil, nil
	}

	return c.state.comm(c.world, sp), nil
}

// next opens a new collective and returns its sequence number.
func (c *Comm) next() uint64 {
	c.seq++
	return c.seq
}

// send posts v to local rank dst under sequence seq. Never blocks.
func (c *Comm) send(seq uint64, dst int, v any) {
	e := envelope{span: c.span, seq: seq, src: c.state.rank, dst: c.span.lo + dst}
	c.world.box(e) <- v
}

// recv waits for the message from local rank src under sequence seq.
func (c *Comm) recv(ctx context.Context, seq uint64, src int) (any, error) {
	e := envelope{span: c.span, seq: seq, src: c.span.lo + src, dst: c.state.rank}
	ch := c.world.box(e)
	// a delivered message wins over cancellation
	select {
	case v := <-ch:
		c.world.drop(e)
		return v, nil
	default:
	}
	select {
	case v := <-ch:
		c.world.drop(e)
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
