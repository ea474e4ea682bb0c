package partition

import (
	"sort"

	"github.com/phil-mansfield/sphpart"
	"github.com/phil-mansfield/sphpart/comm"
	"github.com/phil-mansfield/sphpart/geom"
	"github.com/phil-mansfield/sphpart/tree"
)

// ExchangeGhosts returns the remote bodies the caller needs to answer
// radius queries of up to hMax around its owned bodies. hMax must be the
// global maximum smoothing length (a preceding reduction), so overlap is
// decided conservatively; candidates are then filtered per body by exact
// distance on receipt.
//
// The exchange is a symmetric request/response: the caller derives request
// regions purely from the global branch table and hMax, ships them to the
// owning ranks, and the owners answer with the bodies inside. Both sides of
// any pair derive the same overlap decision from the same table, so no
// ghost a rank needs can go unsent. Calling ExchangeGhosts again with
// unchanged positions yields the same ghost set; ghosts are recomputed
// wholesale, never patched.
//
// t must index the caller's owned bodies and hold no ghosts yet. The
// returned ghosts are sorted by ID.
func ExchangeGhosts(
	c *comm.Comm, t *tree.Tree, bodies []sphpart.Body,
	global []tree.Branch, hMax float64,
) []sphpart.Body {
	rank, size := c.Rank(), c.Size()

	mine := make([]tree.Branch, 0)
	theirs := make([][]tree.Branch, size)
	for _, br := range global {
		if int(br.Rank) == rank {
			if br.Count > 0 {
				mine = append(mine, br)
			}
		} else if br.Count > 0 {
			theirs[br.Rank] = append(theirs[br.Rank], br)
		}
	}

	// Request phase: for each peer, the inflated boxes of my branches that
	// reach into one of the peer's branches. Derived from the branch table
	// alone, so the peer could predict every region it is asked for.
	requests := make([][]geom.Bounds, size)
	for peer := 0; peer < size; peer++ {
		if peer == rank {
			continue
		}
		for _, my := range mine {
			region := my.Bounds.Inflate(hMax)
			for _, br := range theirs[peer] {
				if region.Intersects(br.Bounds) {
					requests[peer] = append(requests[peer], region)
					break
				}
			}
		}
	}
	recvReq := comm.AllToAll(c, requests)

	// Response phase: answer each region with the owned bodies inside it.
	// A body matching several regions of one peer is sent once.
	replies := make([][]sphpart.Body, size)
	for peer := 0; peer < size; peer++ {
		if peer == rank || len(recvReq[peer]) == 0 {
			continue
		}
		seen := map[int]bool{}
		for _, region := range recvReq[peer] {
			for _, i := range t.QueryRegion(region) {
				if !seen[i] {
					seen[i] = true
					replies[peer] = append(replies[peer], bodies[i])
				}
			}
		}
	}
	recvGhosts := comm.AllToAll(c, replies)

	// Keep only candidates within hMax of some owned body. Each body has
	// exactly one owner, so no candidate can arrive twice.
	ghosts := []sphpart.Body{}
	for peer, part := range recvGhosts {
		if peer == rank {
			continue
		}
		for _, g := range part {
			if len(t.QueryRadius(g.X, hMax)) > 0 {
				ghosts = append(ghosts, g)
			}
		}
	}
	sort.Slice(ghosts, func(i, j int) bool { return ghosts[i].ID < ghosts[j].ID })
	return ghosts
}
