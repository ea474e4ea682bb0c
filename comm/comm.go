/*package comm runs a fixed-size group of SPMD ranks inside one process and
gives them the blocking collective operations the partitioning layers are
written against: barrier, all-gather, all-reduce and a bucketed all-to-all.

The operation surface mirrors the MPI collectives the same algorithms are
usually written against (Alltoallv with per-peer counts, allreduce over a
commutative op), but the transport is one goroutine per rank joined by
channels, so the whole world runs under a single `go test`. Every collective
blocks its caller until its portion is complete; no rank observes a
partially-exchanged state. A stalled rank stalls the world, which is the
standard SPMD liveness assumption.

Collectives must be called by every rank of a world in the same order. There
is no tag matching: interleaving two different collectives across ranks is a
programming error, just as it is under MPI.
*/
package comm

import (
	"fmt"
	"sync"
)

// World is the shared state of a rank group. Each pair of ranks gets a
// dedicated channel, so messages from the same sender arrive in order and
// consecutive collectives cannot cross.
type World struct {
	size  int
	pipes [][]chan any
}

// NewWorld creates the shared state for a group of size ranks.
func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Sprintf("comm: world size %d < 1", size))
	}
	pipes := make([][]chan any, size)
	for i := range pipes {
		pipes[i] = make([]chan any, size)
		for j := range pipes[i] {
			pipes[i][j] = make(chan any, 1)
		}
	}
	return &World{size: size, pipes: pipes}
}

// Comm is one rank's handle on a World. A Comm must only be used from the
// goroutine running that rank.
type Comm struct {
	w    *World
	rank int
}

// Comm returns the handle for the given rank.
func (w *World) Comm(rank int) *Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("comm: rank %d outside world of size %d", rank, w.size))
	}
	return &Comm{w: w, rank: rank}
}

// Rank returns the caller's rank index in [0, Size()).
func (c *Comm) Rank() int { return c.rank }

// Size returns the number of ranks in the world.
func (c *Comm) Size() int { return c.w.size }

func (c *Comm) send(to int, x any) { c.w.pipes[c.rank][to] <- x }
func (c *Comm) recv(from int) any  { return <-c.w.pipes[from][c.rank] }

// Barrier blocks until every rank of the world has entered it.
func (c *Comm) Barrier() {
	AllGather(c, struct{}{})
}

// AllGather sends x to every rank and returns the values contributed by all
// ranks, indexed by rank. Every rank returns an identical slice, which is
// how the partition layers reach a single consistent boundary table and
// coarse tree per iteration.
func AllGather[T any](c *Comm, x T) []T {
	for to := 0; to < c.Size(); to++ {
		if to != c.rank {
			c.send(to, x)
		}
	}
	out := make([]T, c.Size())
	out[c.rank] = x
	for from := 0; from < c.Size(); from++ {
		if from != c.rank {
			out[from] = c.recv(from).(T)
		}
	}
	return out
}

// AllReduce folds the per-rank values with op and returns the result on
// every rank. The fold always runs in rank order, so the result is
// bit-identical across ranks even for non-associative floating point ops.
func AllReduce[T any](c *Comm, x T, op func(a, b T) T) T {
	all := AllGather(c, x)
	acc := all[0]
	for _, v := range all[1:] {
		acc = op(acc, v)
	}
	return acc
}

// AllToAll delivers buckets[r] to rank r and returns the buckets every rank
// addressed to the caller, indexed by sender. Empty and nil buckets are
// valid: a rank may have nothing for some or all peers.
func AllToAll[T any](c *Comm, buckets [][]T) [][]T {
	if len(buckets) != c.Size() {
		panic(fmt.Sprintf("comm: %d buckets for world of size %d",
			len(buckets), c.Size()))
	}
	for to := 0; to < c.Size(); to++ {
		if to != c.rank {
			c.send(to, buckets[to])
		}
	}
	out := make([][]T, c.Size())
	out[c.rank] = buckets[c.rank]
	for from := 0; from < c.Size(); from++ {
		if from != c.rank {
			out[from] = c.recv(from).([]T)
		}
	}
	return out
}

// Run spawns size ranks, calls fn on each with its Comm, and waits for all
// of them. The first error by rank order is returned. A panicking rank
// propagates its panic: a dead peer is unrecoverable in this model and
// taking down the run is the only sound response.
func Run(size int, fn func(c *Comm) error) error {
	w := NewWorld(size)
	errs := make([]error, size)

	wg := &sync.WaitGroup{}
	wg.Add(size)
	for rank := 0; rank < size; rank++ {
		go func(rank int) {
			defer wg.Done()
			errs[rank] = fn(w.Comm(rank))
		}(rank)
	}
	wg.Wait()

	for rank, err := range errs {
		if err != nil {
			return fmt.Errorf("rank %d: %w", rank, err)
		}
	}
	return nil
}
