/*package sph exposes the per-iteration protocol the driver and physics
layers are written against. A System owns one rank's bodies and keeps the
decomposition invariants: after UpdateIteration every rank owns a contiguous
key range of bodies, holds a freshly built local tree, shares an identical
coarse branch table with every other rank, and holds exactly the ghosts its
radius queries need.*/
package sph

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/comm"
	"github.com/phil-mansfield/sphpart/geom"
	"github.com/phil-mansfield/sphpart/key"
	"github.com/phil-mansfield/sphpart/partition"
	"github.com/phil-mansfield/sphpart/tree"

	"gonum.org/v1/gonum/spatial/r3"
)

// Config collects the decomposition parameters. The zero value is not
// usable; call DefaultConfig and override selectively.
type Config struct {
	// LeafCap is the body count above which a tree cell is subdivided.
	LeafCap int
	// BranchLevel caps the depth of the coarse nodes shared during the
	// branch exchange. The global branch table holds at most
	// size * 8^BranchLevel entries regardless of body count.
	BranchLevel int
}

// DefaultConfig returns the tuning used by the shipped drivers.
func DefaultConfig() Config {
	return Config{LeafCap: 32, BranchLevel: 3}
}

// Kernel is a per-body physics function with no neighbor requirements,
// e.g. an equation of state. It may mutate the body.
type Kernel func(b *sphpart.Body) error

// NeighborKernel is a per-body physics function that consumes the body's
// current neighbor set: every body (the body itself included) within the
// body's smoothing length, owned and ghost alike. Neighbors are read-only
// snapshots; only b may be mutated.
type NeighborKernel func(b *sphpart.Body, neighbors []*sphpart.Body) error

// System orchestrates the decomposition for one rank. All methods that
// communicate (Load, UpdateIteration, UpdateNeighbors, MaxSmoothingLength,
// TotalBodies) are collectives: every rank of the world must call them in
// the same order.
type System struct {
	c   *comm.Comm
	cfg Config

	bodies []sphpart.Body // owned, sorted by (key, ID)
	keys   []key.Key
	ghosts []sphpart.Body

	tree     *tree.Tree
	domain   geom.Bounds
	bounds   partition.Boundaries
	branches []tree.Branch
	hMax     float64

	loaded bool
}

// NewSystem creates a System for the calling rank.
func NewSystem(c *comm.Comm, cfg Config) *System {
	return &System{c: c, cfg: cfg}
}

// Load takes ownership of the rank's initial bodies and performs the first
// full decomposition. The initial assignment of bodies to ranks is
// irrelevant: the first distributed sort rebalances everything.
func (s *System) Load(bodies []sphpart.Body) error {
	s.bodies = bodies
	s.loaded = true
	return s.UpdateIteration()
}

// UpdateIteration performs the full per-iteration refresh: global domain
// bounds and maximum smoothing length, fresh keys, distributed sort, tree
// rebuild, branch exchange and ghost exchange. Call once per outer
// iteration, after bodies have moved.
func (s *System) UpdateIteration() error {
	if !s.loaded {
		return fmt.Errorf("System used before Load.")
	}

	s.hMax = s.reduceHMax()
	s.domain = s.reduceDomain()

	pairs := make([]partition.Pair, len(s.bodies))
	for i := range s.bodies {
		pairs[i] = partition.Pair{
			Key:  key.New(s.bodies[i].X, s.domain),
			Body: s.bodies[i],
		}
	}

	pairs, bounds := partition.Sort(s.c, pairs)
	s.bounds = bounds
	s.bodies = make([]sphpart.Body, len(pairs))
	s.keys = make([]key.Key, len(pairs))
	for i := range pairs {
		s.bodies[i] = pairs[i].Body
		s.keys[i] = pairs[i].Key
	}

	s.tree = tree.Build(s.bodies, s.keys, s.domain, s.cfg.LeafCap)
	local := s.tree.Branches(s.cfg.BranchLevel, s.c.Rank())
	s.branches = partition.ExchangeBranches(s.c, local)

	s.refreshGhosts()
	return nil
}

// UpdateNeighbors refreshes the ghost set without redistributing ownership,
// for use between physics sub-steps of one iteration. It requires that no
// body has drifted out of the rank's owned key range since the last
// UpdateIteration; a violation is reported as an error rather than silently
// producing stale neighbor sets. Bodies that moved within the range are
// re-indexed locally. Calling UpdateNeighbors twice with unchanged
// positions yields the same ghost set both times.
func (s *System) UpdateNeighbors() error {
	if s.tree == nil {
		return fmt.Errorf("UpdateNeighbors called before Load.")
	}

	s.hMax = s.reduceHMax()

	lo, hi := s.bounds[s.c.Rank()], s.bounds[s.c.Rank()+1]
	moved, drifted := false, int64(-1)
	fresh := make([]key.Key, len(s.bodies))
	for i := range s.bodies {
		k := key.New(s.bodies[i].X, s.domain)
		if k < lo || k >= hi {
			drifted = s.bodies[i].ID
		}
		if k != s.keys[i] {
			moved = true
		}
		fresh[i] = k
	}

	// The violation decision is itself collective, so every rank leaves
	// the protocol together instead of stranding peers inside the next
	// exchange.
	worst := comm.AllReduce(s.c, drifted,
		func(a, b int64) int64 { return max(a, b) })
	if worst >= 0 {
		return fmt.Errorf(
			"Body %d drifted out of its rank's key range within an "+
				"iteration; sub-step displacement exceeded the "+
				"decomposition's safety margin.", worst)
	}
	copy(s.keys, fresh)

	if moved {
		// Keys changed under the tree: re-sort and rebuild locally so
		// radius queries stay exact. No collective is involved and the
		// stale branch table remains valid within the drift margin.
		s.sortLocal()
		s.tree = tree.Build(s.bodies, s.keys, s.domain, s.cfg.LeafCap)
	} else {
		s.tree.ClearGhosts()
	}

	s.refreshGhosts()
	return nil
}

func (s *System) refreshGhosts() {
	s.ghosts = partition.ExchangeGhosts(
		s.c, s.tree, s.bodies, s.branches, s.hMax)
	for i := range s.ghosts {
		s.tree.Insert(s.ghosts[i].X)
	}
}

func (s *System) sortLocal() {
	pairs := make([]partition.Pair, len(s.bodies))
	for i := range s.bodies {
		pairs[i] = partition.Pair{Key: s.keys[i], Body: s.bodies[i]}
	}
	partition.SortLocal(pairs)
	for i := range pairs {
		s.bodies[i], s.keys[i] = pairs[i].Body, pairs[i].Key
	}
}

// ApplyAll invokes kernel on every owned body. The kernel needs no neighbor
// data, so no communication happens and ghosts may be stale afterwards if
// the kernel moved bodies. Kernel errors propagate unmodified.
func (s *System) ApplyAll(kernel Kernel) error {
	for i := range s.bodies {
		if err := kernel(&s.bodies[i]); err != nil {
			return err
		}
	}
	return nil
}

// ApplyInSmoothingLength invokes kernel on every owned body with the body's
// exact neighbor set: all bodies within its smoothing length, including
// itself and any ghosts. The caller must have a current ghost set (Load,
// UpdateIteration or UpdateNeighbors). Kernel errors propagate unmodified.
func (s *System) ApplyInSmoothingLength(kernel NeighborKernel) error {
	var neighbors []*sphpart.Body
	for i := range s.bodies {
		b := &s.bodies[i]
		neighbors = neighbors[:0]
		for _, j := range s.tree.QueryRadius(b.X, b.H) {
			neighbors = append(neighbors, s.bodyAt(j))
		}
		if err := kernel(b, neighbors); err != nil {
			return err
		}
	}
	return nil
}

// bodyAt maps a tree index to the owned body or ghost it refers to.
func (s *System) bodyAt(i int) *sphpart.Body {
	if i < len(s.bodies) {
		return &s.bodies[i]
	}
	return &s.ghosts[i-len(s.bodies)]
}

// GetAll folds a commutative reduction kernel over every body in the
// system, across all ranks. Each rank folds its owned bodies in key order,
// then the per-rank partials are combined in rank order, so the result is
// identical on every rank and across reruns.
func GetAll[T any](
	s *System, zero T, kernel func(acc T, b *sphpart.Body) T,
	combine func(a, b T) T,
) T {
	acc := zero
	for i := range s.bodies {
		acc = kernel(acc, &s.bodies[i])
	}
	return comm.AllReduce(s.c, acc, combine)
}

// MaxSmoothingLength returns the globally largest smoothing length.
func (s *System) MaxSmoothingLength() float64 {
	return s.reduceHMax()
}

func (s *System) reduceHMax() float64 {
	h := 0.0
	for i := range s.bodies {
		h = math.Max(h, s.bodies[i].H)
	}
	return comm.AllReduce(s.c, h, math.Max)
}

// reduceDomain computes the global bounding box of all bodies, inflated by
// the current maximum smoothing length so that interaction spheres near the
// surface stay inside the keyed domain. A single-point system yields a
// degenerate box, which key.New accepts.
func (s *System) reduceDomain() geom.Bounds {
	pts := make([]r3.Vec, len(s.bodies))
	for i := range s.bodies {
		pts[i] = s.bodies[i].X
	}
	local, ok := geom.NewBounds(pts)

	type boxMsg struct {
		b  geom.Bounds
		ok bool
	}
	global := comm.AllReduce(s.c, boxMsg{local, ok},
		func(a, b boxMsg) boxMsg {
			switch {
			case !a.ok:
				return b
			case !b.ok:
				return a
			default:
				return boxMsg{a.b.Union(b.b), true}
			}
		})
	return global.b.Inflate(s.hMax)
}

// Bodies returns the rank's owned bodies in key order. The slice is the
// System's own storage: kernels may mutate it through Apply, everything
// else must treat it as read-only.
func (s *System) Bodies() []sphpart.Body { return s.bodies }

// Ghosts returns the rank's current ghost set, sorted by ID. Ghosts are
// read-only snapshots of remote bodies.
func (s *System) Ghosts() []sphpart.Body { return s.ghosts }

// Boundaries returns the current partition boundary table, identical on
// every rank.
func (s *System) Boundaries() partition.Boundaries { return s.bounds }

// Tree returns the rank's local tree, for diagnostics.
func (s *System) Tree() *tree.Tree { return s.tree }

// Domain returns the keyed domain bounds of the last full refresh.
func (s *System) Domain() geom.Bounds { return s.domain }

// TotalBodies returns the global body count. Collective.
func (s *System) TotalBodies() int64 {
	return comm.AllReduce(s.c, int64(len(s.bodies)),
		func(a, b int64) int64 { return a + b })
}
