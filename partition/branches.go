package partition

import (
	"sort"

	"github.com/phil-mansfield/sphpart/comm"
	"github.com/phil-mansfield/sphpart/tree"
)

// ExchangeBranches assembles the global coarse tree: every rank contributes
// its local branches (already annotated with its rank) and receives the
// identical concatenation of all ranks' branches, ordered by (rank, key,
// level). Only branch summaries travel, never body data, so the collective
// cost depends on rank count and tree depth alone. Ranks with no bodies
// contribute their single empty root branch.
func ExchangeBranches(c *comm.Comm, local []tree.Branch) []tree.Branch {
	gathered := comm.AllGather(c, local)

	global := []tree.Branch{}
	for _, part := range gathered {
		global = append(global, part...)
	}
	sort.Slice(global, func(i, j int) bool {
		bi, bj := &global[i], &global[j]
		if bi.Rank != bj.Rank {
			return bi.Rank < bj.Rank
		}
		if bi.Key != bj.Key {
			return bi.Key < bj.Key
		}
		return bi.Level < bj.Level
	})
	return global
}
