package sph

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/comm"

	"gonum.org/v1/gonum/spatial/r3"
)

// testBodies returns n bodies in the unit cube with smoothing length h.
func testBodies(n int, seed int64, h float64) []sphpart.Body {
	gen := rand.New(rand.NewSource(seed))
	bodies := make([]sphpart.Body, n)
	for i := range bodies {
		bodies[i] = sphpart.Body{
			ID: int64(i),
			X: r3.Vec{
				X: gen.Float64(), Y: gen.Float64(), Z: gen.Float64(),
			},
			Mass: 1, H: h,
		}
	}
	return bodies
}

func roundRobin(bodies []sphpart.Body, rank, ranks int) []sphpart.Body {
	out := []sphpart.Body{}
	for i := range bodies {
		if i%ranks == rank {
			out = append(out, bodies[i])
		}
	}
	return out
}

// bruteNeighbors is the O(n^2) reference: IDs of all bodies within h of x,
// the body at x included.
func bruteNeighbors(bodies []sphpart.Body, x r3.Vec, h float64) []int64 {
	ids := []int64{}
	for j := range bodies {
		d := r3.Sub(bodies[j].X, x)
		if d.X*d.X+d.Y*d.Y+d.Z*d.Z <= h*h {
			ids = append(ids, bodies[j].ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// neighborIDs collects, per owned body ID, the sorted neighbor ID set the
// system hands to kernels.
func neighborIDs(sys *System) (map[int64][]int64, error) {
	got := map[int64][]int64{}
	err := sys.ApplyInSmoothingLength(
		func(b *sphpart.Body, neighbors []*sphpart.Body) error {
			ids := make([]int64, len(neighbors))
			for i, n := range neighbors {
				ids[i] = n.ID
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			got[b.ID] = ids
			return nil
		})
	return got, err
}

// The central property: for every body, the tree+ghost neighbor search and
// a global brute-force search agree exactly, over several rank counts.
func TestNeighborCompleteness(t *testing.T) {
	const h = 0.05
	all := testBodies(100, 42, h)

	for _, ranks := range []int{1, 2, 4, 7} {
		err := comm.Run(ranks, func(c *comm.Comm) error {
			sys := NewSystem(c, Config{LeafCap: 4, BranchLevel: 2})
			err := sys.Load(roundRobin(all, c.Rank(), c.Size()))
			if err != nil {
				return err
			}

			got, err := neighborIDs(sys)
			if err != nil {
				return err
			}
			for _, b := range sys.Bodies() {
				want := bruteNeighbors(all, b.X, b.H)
				g := got[b.ID]
				if len(g) != len(want) {
					return fmt.Errorf(
						"Body %d sees %d neighbors, brute force sees %d.",
						b.ID, len(g), len(want))
				}
				for i := range want {
					if g[i] != want[i] {
						return fmt.Errorf("Body %d neighbor sets differ: "+
							"%v vs %v.", b.ID, g, want)
					}
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("%d ranks: %v", ranks, err)
		}
	}
}

func TestUpdateNeighborsIdempotent(t *testing.T) {
	all := testBodies(80, 7, 0.1)
	err := comm.Run(3, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 8, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}

		if err := sys.UpdateNeighbors(); err != nil {
			return err
		}
		first := append([]sphpart.Body{}, sys.Ghosts()...)
		if err := sys.UpdateNeighbors(); err != nil {
			return err
		}
		second := sys.Ghosts()

		if len(first) != len(second) {
			return fmt.Errorf("Ghost sets differ in size: %d vs %d.",
				len(first), len(second))
		}
		for i := range first {
			if first[i] != second[i] {
				return fmt.Errorf("Ghost %d changed without motion.", i)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestUpdateNeighborsAfterSmallDrift(t *testing.T) {
	all := testBodies(100, 19, 0.1)
	err := comm.Run(2, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 8, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}

		// A sub-step sized displacement, far below the ownership scale.
		err := sys.ApplyAll(func(b *sphpart.Body) error {
			b.X = r3.Add(b.X, r3.Vec{X: 1e-9, Y: 1e-9, Z: 1e-9})
			return nil
		})
		if err != nil {
			return err
		}
		if err := sys.UpdateNeighbors(); err != nil {
			return err
		}

		// Every rank still owns its bodies and queries stay exact.
		got, err := neighborIDs(sys)
		if err != nil {
			return err
		}
		for _, b := range sys.Bodies() {
			want := bruteNeighbors(currentBodies(c, sys), b.X, b.H)
			if len(got[b.ID]) != len(want) {
				return fmt.Errorf("Body %d: %d neighbors vs %d.",
					b.ID, len(got[b.ID]), len(want))
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestUpdateNeighborsDriftError(t *testing.T) {
	all := testBodies(100, 29, 0.05)
	err := comm.Run(4, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 8, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}

		// Throw one body across the whole domain: far past any rank's key
		// range. Every rank must see the violation, not just the owner.
		if c.Rank() == 0 {
			b := sys.Bodies()
			b[0].X = r3.Add(b[0].X, r3.Vec{X: 0.9, Y: 0.9, Z: 0.9})
		}
		if err := sys.UpdateNeighbors(); err == nil {
			return fmt.Errorf("Drift across rank domains went undetected.")
		}
		return nil
	})
	assert.NoError(t, err)
}

// currentBodies gathers the live global body set, since positions may have
// drifted from the fixture.
func currentBodies(c *comm.Comm, sys *System) []sphpart.Body {
	parts := comm.AllGather(c, sys.Bodies())
	all := []sphpart.Body{}
	for _, p := range parts {
		all = append(all, p...)
	}
	return all
}

func TestConservationAcrossIterations(t *testing.T) {
	all := testBodies(200, 3, 0.08)
	err := comm.Run(4, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 8, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}

		gen := rand.New(rand.NewSource(int64(c.Rank())))
		for iter := 0; iter < 5; iter++ {
			// Move bodies around, including across rank domains.
			err := sys.ApplyAll(func(b *sphpart.Body) error {
				b.X = r3.Add(b.X, r3.Vec{
					X: 0.1 * (gen.Float64() - 0.5),
					Y: 0.1 * (gen.Float64() - 0.5),
					Z: 0.1 * (gen.Float64() - 0.5),
				})
				return nil
			})
			if err != nil {
				return err
			}
			if err := sys.UpdateIteration(); err != nil {
				return err
			}

			if n := sys.TotalBodies(); n != 200 {
				return fmt.Errorf("Iteration %d: %d bodies.", iter, n)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestGetAll(t *testing.T) {
	all := testBodies(150, 23, 0.05)
	for i := range all {
		all[i].Mass = 2
	}
	err := comm.Run(3, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 8, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}

		mass := GetAll(sys, 0.0,
			func(acc float64, b *sphpart.Body) float64 {
				return acc + b.Mass
			},
			func(a, b float64) float64 { return a + b })
		if mass != 300 {
			return fmt.Errorf("Total mass = %g, want 300.", mass)
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestMoreRanksThanBodies(t *testing.T) {
	all := testBodies(3, 1, 0.3)
	err := comm.Run(8, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 4, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}
		if n := sys.TotalBodies(); n != 3 {
			return fmt.Errorf("%d bodies after load.", n)
		}
		// Ranks with empty local sets still run the full protocol.
		if err := sys.UpdateIteration(); err != nil {
			return err
		}
		got, err := neighborIDs(sys)
		if err != nil {
			return err
		}
		for _, b := range sys.Bodies() {
			want := bruteNeighbors(all, b.X, b.H)
			if len(got[b.ID]) != len(want) {
				return fmt.Errorf("Body %d: %v vs %v.",
					b.ID, got[b.ID], want)
			}
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestMaxSmoothingLength(t *testing.T) {
	all := testBodies(40, 31, 0.05)
	all[17].H = 0.4
	err := comm.Run(4, func(c *comm.Comm) error {
		sys := NewSystem(c, Config{LeafCap: 8, BranchLevel: 2})
		if err := sys.Load(roundRobin(all, c.Rank(), c.Size())); err != nil {
			return err
		}
		if h := sys.MaxSmoothingLength(); h != 0.4 {
			return fmt.Errorf("hMax = %g.", h)
		}
		return nil
	})
	assert.NoError(t, err)
}

func TestUseBeforeLoad(t *testing.T) {
	err := comm.Run(1, func(c *comm.Comm) error {
		sys := NewSystem(c, DefaultConfig())
		return sys.UpdateIteration()
	})
	assert.Error(t, err)
}

func TestKernelErrorPropagates(t *testing.T) {
	all := testBodies(20, 2, 0.1)
	kernelErr := fmt.Errorf("bad state")
	err := comm.Run(1, func(c *comm.Comm) error {
		sys := NewSystem(c, DefaultConfig())
		if err := sys.Load(all); err != nil {
			return err
		}
		err := sys.ApplyAll(func(b *sphpart.Body) error { return kernelErr })
		if err == nil {
			return fmt.Errorf("ApplyAll swallowed the kernel error.")
		}
		return nil
	})
	assert.NoError(t, err)
}
