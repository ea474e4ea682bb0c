package comm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllGather(t *testing.T) {
	err := Run(4, func(c *Comm) error {
		got := AllGather(c, c.Rank()*10)
		want := []int{0, 10, 20, 30}
		if len(got) != len(want) {
			return fmt.Errorf("AllGather returned %d values.", len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				return fmt.Errorf("AllGather[%d] = %d, want %d.",
					i, got[i], want[i])
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestAllReduceRankOrdered(t *testing.T) {
	// A deliberately non-commutative op exposes any deviation from the
	// promised rank-ordered fold.
	err := Run(5, func(c *Comm) error {
		s := AllReduce(c, fmt.Sprintf("%d", c.Rank()),
			func(a, b string) string { return a + b })
		if s != "01234" {
			return fmt.Errorf("AllReduce folded to %q.", s)
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestAllToAll(t *testing.T) {
	// Rank r sends the single value r*10+to to rank to, except that
	// nothing at all is sent to rank 2, covering the empty-bucket case.
	err := Run(4, func(c *Comm) error {
		buckets := make([][]int, c.Size())
		for to := range buckets {
			if to == 2 {
				continue
			}
			buckets[to] = []int{c.Rank()*10 + to}
		}
		recv := AllToAll(c, buckets)

		for from, bucket := range recv {
			if c.Rank() == 2 {
				if len(bucket) != 0 {
					return fmt.Errorf("rank 2 received %v from %d.",
						bucket, from)
				}
				continue
			}
			if len(bucket) != 1 || bucket[0] != from*10+c.Rank() {
				return fmt.Errorf("received %v from %d.", bucket, from)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestConsecutiveCollectives(t *testing.T) {
	// Back-to-back collectives must not bleed into each other.
	err := Run(3, func(c *Comm) error {
		for round := 0; round < 100; round++ {
			got := AllReduce(c, round, func(a, b int) int { return a + b })
			if got != 3*round {
				return fmt.Errorf("round %d folded to %d.", round, got)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestSingleRank(t *testing.T) {
	err := Run(1, func(c *Comm) error {
		c.Barrier()
		if got := AllGather(c, 7); len(got) != 1 || got[0] != 7 {
			return fmt.Errorf("AllGather = %v.", got)
		}
		recv := AllToAll(c, [][]int{{1, 2, 3}})
		if len(recv) != 1 || len(recv[0]) != 3 {
			return fmt.Errorf("AllToAll = %v.", recv)
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestRunPropagatesError(t *testing.T) {
	err := Run(3, func(c *Comm) error {
		if c.Rank() == 1 {
			return fmt.Errorf("boom")
		}
		return nil
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rank 1")
}
