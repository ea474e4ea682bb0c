/*package tree implements the per-rank spatial index: an octree over the
rank's owned bodies, stored as an arena of nodes addressed by index. The
octant decomposition follows the same Morton cell grid as package key, so
the cells of two ranks' trees at a given level are drawn from one global
grid and a node is identified by its (key prefix, level) pair alone. Built
trees answer exact radius queries over owned bodies plus the currently
inserted ghosts.*/
package tree

import (
	"fmt"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/geom"
	"github.com/phil-mansfield/sphpart/key"

	"gonum.org/v1/gonum/spatial/r3"
)

// nilNode marks an empty child slot.
const nilNode = int32(-1)

// Node is one cell of the octree. Nodes live in the tree's arena and refer
// to each other by index, never by pointer, so a node set can be shipped
// across ranks or discarded wholesale without dangling references.
type Node struct {
	// Key is the Morton prefix of this cell and Level its depth; together
	// they identify the cell globally.
	Key   key.Key
	Level int32
	// First and Count span the key-sorted owned bodies inside this cell.
	First, Count int32
	// Children holds arena indices, nilNode where the octant is empty.
	// A node with no children is a leaf.
	Children [8]int32
	Bounds   geom.Bounds

	// ghosts are indices into the ghost list, attached to the deepest
	// existing cell containing each ghost when Insert is called.
	ghosts []int32
	leaf   bool
}

// Branch is the cross-rank summary of a coarse node. Branch tables are what
// ranks exchange to route ghost requests: they carry no body data, bounding
// their size by rank count and depth rather than particle count.
type Branch struct {
	Key    key.Key
	Level  int32
	Count  int32
	Rank   int32
	Bounds geom.Bounds
}

// Tree is the spatial index over one rank's owned bodies and ghosts. The
// owned body slice must be sorted by (key, ID) and is not retained; only
// positions are copied in.
type Tree struct {
	Nodes []Node

	xs     []r3.Vec // owned body positions, key-sorted
	keys   []key.Key
	ghostX []r3.Vec
	bounds geom.Bounds
	root   int32
}

// Build constructs the octree for bodies inside the global domain bounds.
// bodies and keys must be parallel and sorted by (key, ID). Cells with more
// than leafCap bodies are subdivided until they fit or the key resolution
// runs out. An empty body set yields a valid tree with a single empty root.
func Build(
	bodies []sphpart.Body, keys []key.Key, bounds geom.Bounds, leafCap int,
) *Tree {
	if leafCap < 1 {
		leafCap = 1
	}
	t := &Tree{
		xs:     make([]r3.Vec, len(bodies)),
		keys:   make([]key.Key, len(keys)),
		bounds: bounds,
	}
	for i := range bodies {
		t.xs[i] = bodies[i].X
	}
	copy(t.keys, keys)

	t.root = t.build(0, int32(len(bodies)), 0, 0, bounds, leafCap)
	return t
}

func (t *Tree) build(
	lo, hi int32, level int, prefix key.Key, b geom.Bounds, leafCap int,
) int32 {
	idx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, Node{
		Key: prefix, Level: int32(level),
		First: lo, Count: hi - lo,
		Children: [8]int32{
			nilNode, nilNode, nilNode, nilNode,
			nilNode, nilNode, nilNode, nilNode,
		},
		Bounds: b,
		leaf:   true,
	})

	if hi-lo <= int32(leafCap) || level >= key.MaxLevel {
		return idx
	}

	// The bodies are Morton-sorted, so each octant of this cell is a
	// contiguous sub-span found by scanning the octant digits once.
	t.Nodes[idx].leaf = false
	childLevel := level + 1
	start := lo
	for oct := 0; oct < 8; oct++ {
		end := start
		for end < hi && t.keys[end].Octant(childLevel) == oct {
			end++
		}
		if end > start {
			shift := uint(3 * (key.MaxLevel - childLevel))
			childPrefix := prefix | key.Key(uint64(oct)<<shift)
			child := t.build(
				start, end, childLevel, childPrefix, b.Octant(oct), leafCap,
			)
			t.Nodes[idx].Children[oct] = child
		}
		start = end
	}
	return idx
}

// Len returns the number of owned bodies indexed by the tree.
func (t *Tree) Len() int { return len(t.xs) }

// NumGhosts returns the number of ghosts currently inserted.
func (t *Tree) NumGhosts() int { return len(t.ghostX) }

// Insert adds a ghost position to the tree. The returned index of a later
// query is Len()+g for the g'th inserted ghost. Ghosts attach to the
// deepest existing cell containing them; they never subdivide cells, so
// inserting and clearing ghosts leaves the node arena untouched. A ghost
// that has drifted outside the domain bounds attaches to the root, which
// queries always visit.
func (t *Tree) Insert(x r3.Vec) {
	gi := int32(len(t.ghostX))
	t.ghostX = append(t.ghostX, x)

	at := t.root
	if t.Nodes[at].Bounds.Contains(x) {
		for {
			n := &t.Nodes[at]
			if n.leaf {
				break
			}
			child := n.Children[octantOf(x, n.Bounds)]
			if child == nilNode {
				break
			}
			at = child
		}
	}
	t.Nodes[at].ghosts = append(t.Nodes[at].ghosts, gi)
}

// ClearGhosts discards every inserted ghost. Ghosts are rebuilt wholesale
// on every exchange rather than patched in place.
func (t *Tree) ClearGhosts() {
	for i := range t.Nodes {
		t.Nodes[i].ghosts = t.Nodes[i].ghosts[:0]
	}
	t.ghostX = t.ghostX[:0]
}

func octantOf(x r3.Vec, b geom.Bounds) int {
	c := b.Center()
	oct := 0
	if x.X >= c.X {
		oct |= 1
	}
	if x.Y >= c.Y {
		oct |= 2
	}
	if x.Z >= c.Z {
		oct |= 4
	}
	return oct
}

// QueryRadius returns the indices of every indexed position within radius r
// of c, owned bodies and ghosts alike. Indices below Len() are owned bodies
// in key-sorted order; Len()+g is the g'th ghost. The traversal prunes by
// cell bounds and then filters by exact distance, so the result has no
// false positives and no false negatives.
func (t *Tree) QueryRadius(c r3.Vec, r float64) []int {
	var out []int
	r2 := r * r
	base := len(t.xs)

	stack := []int32{t.root}
	for len(stack) > 0 {
		at := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[at]

		// Ghosts are filtered by exact distance before the bounds prune:
		// a ghost attached to a cell it drifted out of must still be seen.
		for _, gi := range n.ghosts {
			if dist2(t.ghostX[gi], c) <= r2 {
				out = append(out, base+int(gi))
			}
		}
		if !n.Bounds.IntersectsSphere(c, r) {
			continue
		}
		if n.leaf {
			for i := n.First; i < n.First+n.Count; i++ {
				if dist2(t.xs[i], c) <= r2 {
					out = append(out, int(i))
				}
			}
			continue
		}
		for _, child := range n.Children {
			if child != nilNode {
				stack = append(stack, child)
			}
		}
	}
	return out
}

// QueryRegion returns the indices of the owned bodies inside b. Ghosts are
// deliberately excluded: region queries serve the ghost exchange, which
// must only ever answer with bodies the rank owns.
func (t *Tree) QueryRegion(b geom.Bounds) []int {
	var out []int
	stack := []int32{t.root}
	for len(stack) > 0 {
		at := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[at]

		if !n.Bounds.Intersects(b) {
			continue
		}
		if n.leaf {
			for i := n.First; i < n.First+n.Count; i++ {
				if b.Contains(t.xs[i]) {
					out = append(out, int(i))
				}
			}
			continue
		}
		for _, child := range n.Children {
			if child != nilNode {
				stack = append(stack, child)
			}
		}
	}
	return out
}

// Branches returns the coarse nodes of the tree for the branch exchange:
// every node at maxLevel plus every shallower leaf, annotated with the
// owning rank. The result size is bounded by 8^maxLevel regardless of how
// many bodies the rank owns. A rank with no bodies returns a single empty
// root branch.
func (t *Tree) Branches(maxLevel, rank int) []Branch {
	var out []Branch
	stack := []int32{t.root}
	for len(stack) > 0 {
		at := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.Nodes[at]

		if n.leaf || int(n.Level) >= maxLevel {
			out = append(out, Branch{
				Key: n.Key, Level: n.Level, Count: n.Count,
				Rank: int32(rank), Bounds: n.Bounds,
			})
			continue
		}
		for _, child := range n.Children {
			if child != nilNode {
				stack = append(stack, child)
			}
		}
	}
	return out
}

func dist2(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return d.X*d.X + d.Y*d.Y + d.Z*d.Z
}

func (t *Tree) String() string {
	return fmt.Sprintf("Tree{%d nodes, %d bodies, %d ghosts}",
		len(t.Nodes), len(t.xs), len(t.ghostX))
}
