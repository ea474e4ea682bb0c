/*package sphpart implements distributed spatial decomposition and neighbor
discovery for smoothed-particle hydrodynamics simulations. Each rank in an
SPMD run owns a contiguous range of space-filling-curve keys; per iteration
the library redistributes bodies to match that ownership, rebuilds a local
spatial tree, shares a coarse global view of the tree, and exchanges the
ghost bodies needed to answer radius-limited neighbor queries exactly.

Almost all of the heavy lifting is done by the subpackages. The root package
only contains the types shared between them.
*/
package sphpart

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Body is a single SPH particle. A Body is owned by exactly one rank at any
// instant and may be duplicated read-only on other ranks as a ghost. The
// partitioning core only touches ID, X and H; every other field is written
// by the physics kernels of the surrounding driver.
type Body struct {
	ID int64

	X, V, A r3.Vec

	Mass       float64
	Density    float64
	Pressure   float64
	SoundSpeed float64
	// H is the smoothing length: the interaction radius beyond which
	// neighbor contributions are ignored.
	H float64
	// U is the specific internal energy and DUDt its current rate.
	U, DUDt float64
}
