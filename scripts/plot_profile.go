/*plot_profile plots the radial density profile of a snapshot shard set.

    $ go run plot_profile.go shard1.sph [shard2.sph ...]

Bodies from every given shard are binned by radius around the domain center
and the mean density per bin is plotted.
*/
package main

import (
	"log"
	"math"
	"os"

	plt "github.com/phil-mansfield/pyplot"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/snapio"

	"gonum.org/v1/gonum/spatial/r3"
)

const bins = 50

func main() {
	if len(os.Args) < 2 {
		log.Fatalf("Usage: plot_profile <shard> [<shard> ...]")
	}

	bodies := []sphpart.Body{}
	var hdr snapio.Header
	for _, path := range os.Args[1:] {
		h, bs, err := snapio.ReadBodies(path)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if len(bodies) > 0 && h.RunID != hdr.RunID {
			log.Fatalf("%s belongs to a different run than earlier shards.",
				path)
		}
		hdr = h
		bodies = append(bodies, bs...)
	}

	center := hdr.Domain.Center()
	span := hdr.Domain.Span()
	rMax := 0.5 * math.Max(span.X, math.Max(span.Y, span.Z))

	sums, counts := make([]float64, bins), make([]float64, bins)
	for i := range bodies {
		r := r3.Norm(r3.Sub(bodies[i].X, center))
		bin := int(float64(bins) * r / rMax)
		if bin >= 0 && bin < bins {
			sums[bin] += bodies[i].Density
			counts[bin]++
		}
	}

	rs, rhos := []float64{}, []float64{}
	for bin := 0; bin < bins; bin++ {
		if counts[bin] == 0 {
			continue
		}
		rs = append(rs, rMax*(float64(bin)+0.5)/bins)
		rhos = append(rhos, sums[bin]/counts[bin])
	}

	plt.Reset()
	plt.Figure()
	plt.Plot(rs, rhos, "k", plt.LW(2))
	plt.XLabel(`$r$`, plt.FontSize(16))
	plt.YLabel(`$\rho$`, plt.FontSize(16))
	plt.Execute()
}
