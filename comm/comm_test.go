// SPDX-License-Identifier: MIT
package comm_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/hss/comm"
)

func TestNewWorldInvalid(t *testing.T) {
	_, err := comm.NewWorld(0)
	require.ErrorIs(t, err, comm.ErrInvalidSize)

	w, err := comm.NewWorld(2)
	require.NoError(t, err)
	_, err = w.Comm(2)
	require.ErrorIs(t, err, comm.ErrInvalidRank)
}

func TestCommIdentity(t *testing.T) {
	err := comm.Run(context.Background(), 3, func(ctx context.Context, c *comm.Comm) error {
		if c.Size() != 3 || c.Lo() != 0 || c.Rank() != c.WorldRank() {
			return errors.New("bad world communicator")
		}
		sub, err := c.Sub(1, 2)
		if err != nil {
			return err
		}
		if c.WorldRank() == 0 {
			if sub != nil {
				return errors.New("rank 0 must not be a member of [1,3)")
			}
			return nil
		}
		if sub.Rank() != c.WorldRank()-1 || !sub.Contains(2) || sub.Contains(0) {
			return errors.New("bad sub communicator")
		}
		again, _ := c.Sub(1, 2)
		if again != sub {
			return errors.New("sub handles must be cached")
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSubInvalidRange(t *testing.T) {
	w, err := comm.NewWorld(2)
	require.NoError(t, err)
	c, err := w.Comm(0)
	require.NoError(t, err)

	_, err = c.Sub(1, 2)
	require.ErrorIs(t, err, comm.ErrInvalidRange)
	_, err = c.Sub(0, 0)
	require.ErrorIs(t, err, comm.ErrInvalidSize)
}

func TestCollectives(t *testing.T) {
	t.Parallel()
	for _, p := range []int{1, 2, 3, 4} {
		p := p
		t.Run("", func(t *testing.T) {
			err := comm.Run(context.Background(), p, func(ctx context.Context, c *comm.Comm) error {
				me := c.Rank()
				if err := c.Barrier(ctx); err != nil {
					return err
				}

				v, err := c.Bcast(ctx, p-1, me*10)
				if err != nil {
					return err
				}
				if v.(int) != (p-1)*10 {
					return errors.New("bcast")
				}

				all, err := c.AllGather(ctx, me)
				if err != nil {
					return err
				}
				for r, x := range all {
					if x.(int) != r {
						return errors.New("allgather")
					}
				}

				out := make([]any, p)
				for dst := range out {
					out[dst] = me*100 + dst
				}
				in, err := c.AllToAll(ctx, out)
				if err != nil {
					return err
				}
				for src, x := range in {
					if x.(int) != src*100+me {
						return errors.New("alltoall")
					}
				}

				sum, err := c.ReduceSum(ctx, 0, []float64{1, float64(me)})
				if err != nil {
					return err
				}
				if me == 0 && (sum[0] != float64(p) || sum[1] != float64(p*(p-1)/2)) {
					return errors.New("reduce")
				}
				if me != 0 && sum != nil {
					return errors.New("reduce on non-root")
				}

				all2, err := c.AllReduceSum(ctx, []float64{float64(me)})
				if err != nil {
					return err
				}
				if all2[0] != float64(p*(p-1)/2) {
					return errors.New("allreduce")
				}

				return c.Agree(ctx, 42)
			})
			require.NoError(t, err)
		})
	}
}

// TestSubCommunicatorsIndependent runs collectives on disjoint halves
// concurrently with a world collective afterwards.
func TestSubCommunicatorsIndependent(t *testing.T) {
	err := comm.Run(context.Background(), 4, func(ctx context.Context, c *comm.Comm) error {
		lo := 0
		if c.WorldRank() >= 2 {
			lo = 2
		}
		half, err := c.Sub(lo, 2)
		if err != nil {
			return err
		}
		sum, err := half.AllReduceSum(ctx, []float64{float64(c.WorldRank())})
		if err != nil {
			return err
		}
		want := 1.0
		if lo == 2 {
			want = 5
		}
		if sum[0] != want {
			return errors.New("half sum")
		}

		return c.Barrier(ctx)
	})
	require.NoError(t, err)
}

func TestAgreeDisagreement(t *testing.T) {
	var failures atomic.Int32
	err := comm.Run(context.Background(), 3, func(ctx context.Context, c *comm.Comm) error {
		v := uint64(7)
		if c.Rank() == 1 {
			v = 8
		}
		if err := c.Agree(ctx, v); err != nil {
			if errors.Is(err, comm.ErrDisagreement) {
				failures.Add(1)
			}
			return err
		}
		return nil
	})
	require.ErrorIs(t, err, comm.ErrDisagreement)
	// every member detects it; none is left blocked
	require.Equal(t, int32(3), failures.Load())
}

// TestCancellationUnblocksRecv checks that a failing rank releases a peer
// waiting in a collective.
func TestCancellationUnblocksRecv(t *testing.T) {
	boom := errors.New("boom")
	done := make(chan error, 1)
	go func() {
		done <- comm.Run(context.Background(), 2, func(ctx context.Context, c *comm.Comm) error {
			if c.Rank() == 0 {
				return boom
			}
			_, err := c.Bcast(ctx, 0, nil)
			return err
		})
	}()
	select {
	case err := <-done:
		require.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("collective did not observe cancellation")
	}
}

func TestArgumentErrors(t *testing.T) {
	err := comm.Run(context.Background(), 2, func(ctx context.Context, c *comm.Comm) error {
		if _, err := c.AllToAll(ctx, []any{1}); !errors.Is(err, comm.ErrLengthMismatch) {
			return errors.New("want ErrLengthMismatch")
		}
		if _, err := c.ReduceSum(ctx, 5, nil); !errors.Is(err, comm.ErrInvalidRank) {
			return errors.New("want ErrInvalidRank")
		}
		if _, err := c.Bcast(ctx, -1, nil); !errors.Is(err, comm.ErrInvalidRank) {
			return errors.New("want ErrInvalidRank")
		}
		return nil
	})
	require.NoError(t, err)
}
