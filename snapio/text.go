package snapio

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/phil-mansfield/sphpart"

	"gonum.org/v1/gonum/spatial/r3"
)

// Text initial-conditions column layout: whitespace-separated columns of
// x y z vx vy vz mass h u, one body per row. Comment lines start with '#'.
var textCols = []int{0, 1, 2, 3, 4, 5, 6, 7, 8}

// ReadText reads initial conditions from a text table and returns the
// rank'th of ranks round-robin slices of its rows. Every rank reads the
// same file; the slice a rank gets is irrelevant because the first
// distributed sort rebalances ownership anyway. Body IDs are the global
// row indices, which keeps them stable across any rank count.
func ReadText(path string, rank, ranks int) (bodies []sphpart.Body, err error) {
	// The table package reports I/O and parse failures by panicking;
	// convert those back into the error return callers rely on.
	defer func() {
		if r := recover(); r != nil {
			bodies, err = nil, fmt.Errorf("%s: %v", path, r)
		}
	}()
	cols := table.TextFile(path).ReadFloat64s(textCols)
	xs, ys, zs := cols[0], cols[1], cols[2]
	vxs, vys, vzs := cols[3], cols[4], cols[5]
	ms, hs, us := cols[6], cols[7], cols[8]

	bodies = []sphpart.Body{}
	for i := range xs {
		if i%ranks != rank {
			continue
		}
		bodies = append(bodies, sphpart.Body{
			ID:   int64(i),
			X:    r3.Vec{X: xs[i], Y: ys[i], Z: zs[i]},
			V:    r3.Vec{X: vxs[i], Y: vys[i], Z: vzs[i]},
			Mass: ms[i],
			H:    hs[i],
			U:    us[i],
		})
	}
	return bodies, nil
}
