/*package key maps positions inside the global domain bounds to Morton
(Z-order) keys. Sorting bodies by key approximates a locality-preserving
traversal of space, so a contiguous key range corresponds to a compact
spatial region. That property is what lets the distributed sort hand each
rank a contiguous range and still produce balanced, compact domains.*/
package key

import (
	"fmt"

	"github.com/phil-mansfield/sphpart/geom"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxLevel is the number of octree levels a Key can resolve. Each level
	// contributes one bit per dimension, so 21 levels fill 63 of the 64
	// bits of a Key.
	MaxLevel = 21

	cellsPerDim = 1 << MaxLevel
)

// Key is an order-preserving spatial key. Keys compare with the ordinary
// integer ordering. Two bodies at the same position inside the same bounds
// always map to the same Key; ties are broken downstream by body ID, never
// by the Key itself.
type Key uint64

// MaxKey is larger than any key New can produce. It is used as the final
// sentinel of a partition boundary table.
const MaxKey = Key(1) << (3 * MaxLevel)

// New returns the Key for a position inside the given domain bounds. New is
// a pure function of p and b. Coordinates on or outside a face of b clamp
// to the nearest cell, so a slightly stale bounding box degrades locality
// but never produces an invalid key. A degenerate bounds axis maps every
// coordinate along it to cell zero.
func New(p r3.Vec, b geom.Bounds) Key {
	ix := cell(p.X, b.Min.X, b.Max.X)
	iy := cell(p.Y, b.Min.Y, b.Max.Y)
	iz := cell(p.Z, b.Min.Z, b.Max.Z)
	return Key(spread(ix) | spread(iy)<<1 | spread(iz)<<2)
}

func cell(x, lo, hi float64) uint64 {
	if hi <= lo {
		return 0
	}
	i := int64(float64(cellsPerDim) * (x - lo) / (hi - lo))
	if i < 0 {
		i = 0
	} else if i >= cellsPerDim {
		i = cellsPerDim - 1
	}
	return uint64(i)
}

// spread spaces the low 21 bits of x three bits apart.
func spread(x uint64) uint64 {
	x &= 0x1fffff
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// Truncate zeroes every octant digit of k below the given level, giving the
// key of the level-deep tree cell containing k. Truncate(0) is always zero:
// the root cell contains everything.
func (k Key) Truncate(level int) Key {
	if level >= MaxLevel {
		return k
	}
	shift := uint(3 * (MaxLevel - level))
	return k >> shift << shift
}

// Octant returns the octant digit of k at the given level, in [0, 8).
// Level 1 is the coarsest subdivision.
func (k Key) Octant(level int) int {
	shift := uint(3 * (MaxLevel - level))
	return int(k>>shift) & 7
}

// Cell reconstructs the bounding box of the level-deep tree cell containing
// k, given the domain bounds the key was created with.
func (k Key) Cell(level int, b geom.Bounds) geom.Bounds {
	for l := 1; l <= level; l++ {
		b = b.Octant(k.Octant(l))
	}
	return b
}

func (k Key) String() string {
	return fmt.Sprintf("%021o", uint64(k))
}
