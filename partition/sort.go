/*package partition moves bodies between ranks. It contains the three
collective operations of the decomposition: the sampled-splitter distributed
sort that gives each rank a contiguous key range, the branch exchange that
gives every rank an identical coarse view of all trees, and the symmetric
ghost exchange that ships the remote bodies needed for exact radius queries.
All three are blocking collectives over a comm.Comm; every rank of the world
must call them in the same order.*/
package partition

import (
	"fmt"
	"sort"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/comm"
	"github.com/phil-mansfield/sphpart/key"
)

// sampleCap is the largest number of keys one rank contributes to the
// splitter sample. With evenly strided samples the expected per-rank load
// imbalance is O(size/sampleCap), so 128 holds it to a few percent for any
// realistic rank count.
const sampleCap = 128

// Pair binds a body to its current spatial key. The distributed sort works
// on pairs so that a body and the key it was routed by can never drift
// apart.
type Pair struct {
	Key  key.Key
	Body sphpart.Body
}

// Boundaries is the partition boundary table: rank r owns every key in
// [b[r], b[r+1]). The table has one more entry than the world has ranks;
// the first entry is zero and the last is key.MaxKey. After Sort all ranks
// hold identical tables.
type Boundaries []key.Key

// Owner returns the rank owning k.
func (b Boundaries) Owner(k key.Key) int {
	// Find the last boundary <= k.
	i := sort.Search(len(b)-1, func(i int) bool { return b[i+1] > k })
	return i
}

// SortLocal orders pairs by key, breaking ties by body ID. The ID tie-break
// makes the global order strict and deterministic: reruns with the same
// input and rank count produce identical ownership.
func SortLocal(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Key != pairs[j].Key {
			return pairs[i].Key < pairs[j].Key
		}
		return pairs[i].Body.ID < pairs[j].Body.ID
	})
}

// Sort redistributes pairs so that the caller ends up owning exactly the
// pairs whose keys fall in its range of the returned boundary table. The
// table itself is recomputed from a collective sample of all ranks' keys,
// sized so that per-rank body counts stay balanced even under heavy spatial
// clustering. The returned pairs are sorted by (key, ID).
//
// Ranks with no local pairs contribute an empty sample, and a rank may
// legitimately receive nothing, either from some peers or outright (more
// ranks than distinct keys); neither is an error. Across all ranks no pair
// is created, duplicated or lost; a violation of that invariant panics,
// since a rank that bails out of a collective mid-phase would leave its
// peers blocked forever.
func Sort(c *comm.Comm, pairs []Pair) ([]Pair, Boundaries) {
	SortLocal(pairs)
	bounds := splitters(c, pairs)

	// Bucket by destination. pairs is sorted, so each destination's pairs
	// form a contiguous run.
	size := c.Size()
	buckets := make([][]Pair, size)
	start := 0
	for dest := 0; dest < size; dest++ {
		end := start
		for end < len(pairs) && bounds.Owner(pairs[end].Key) == dest {
			end++
		}
		buckets[dest] = pairs[start:end]
		start = end
	}
	if start != len(pairs) {
		panic(fmt.Sprintf("partition: bucketing dropped %d of %d pairs",
			len(pairs)-start, len(pairs)))
	}

	recv := comm.AllToAll(c, buckets)
	merged := []Pair{}
	for _, bucket := range recv {
		merged = append(merged, bucket...)
	}
	SortLocal(merged)

	lo, hi := bounds[c.Rank()], bounds[c.Rank()+1]
	for i := range merged {
		if k := merged[i].Key; k < lo || k >= hi {
			panic(fmt.Sprintf(
				"partition: received key %v outside owned range [%v, %v)",
				k, lo, hi))
		}
	}
	return merged, bounds
}

// splitters derives the boundary table from a collective sample of keys.
// Every rank computes the table from the same gathered sample in the same
// way, so the tables agree without a designated root.
func splitters(c *comm.Comm, pairs []Pair) Boundaries {
	local := make([]key.Key, 0, sampleCap)
	if n := len(pairs); n > 0 {
		stride := n / sampleCap
		if stride < 1 {
			stride = 1
		}
		for i := 0; i < n && len(local) < sampleCap; i += stride {
			local = append(local, pairs[i].Key)
		}
	}

	gathered := comm.AllGather(c, local)
	sample := []key.Key{}
	for _, part := range gathered {
		sample = append(sample, part...)
	}
	sort.Slice(sample, func(i, j int) bool { return sample[i] < sample[j] })

	size := c.Size()
	bounds := make(Boundaries, size+1)
	bounds[0], bounds[size] = 0, key.MaxKey
	for r := 1; r < size; r++ {
		if len(sample) == 0 {
			// No bodies anywhere: rank 0 owns the whole (empty) key space.
			bounds[r] = key.MaxKey
			continue
		}
		bounds[r] = sample[r*len(sample)/size]
	}
	return bounds
}
