// Package tsp — cheapest insertion.
//
// The tour grows from an initial cycle (typically the cycle of a one-tree)
// by repeatedly inserting the outside vertex whose cheapest insertion is
// smallest. The cycle is kept as a successor array and each outside vertex
// caches its best insertion edge; an insertion only invalidates caches that
// pointed at the edge it split.
//
// Complexity: O(N²) time on average, O(N) memory.
package tsp

import (
	"fmt"

	"github.com/katalvlaran/tspgrid/matrix"
)

// InsertionTour extends cycle (an open sequence of distinct vertices whose
// last element links back to its first; nil or empty starts from vertex 0)
// to a full tour by cheapest insertion.
func InsertionTour(g matrix.Graph, cycle []int) (*Tour, error) {
	n := g.Size()
	if len(cycle) == 0 {
		cycle = []int{0}
	}
	next := make([]int, n)
	in := make([]bool, n)
	for i := range next {
		next[i] = -1
	}
	for i, v := range cycle {
		if v < 0 || v >= n || in[v] {
			return nil, fmt.Errorf("cycle vertex %d: %w", v, ErrBadSeed)
		}
		in[v] = true
		next[v] = cycle[(i+1)%len(cycle)]
	}

	delta := func(u, x int) int {
		v := next[u]
		return g.Cost(u, x) + g.Cost(x, v) - g.Cost(u, v)
	}
	bestAt := make([]int, n)
	bestDelta := make([]int, n)
	rescan := func(x int) {
		bestAt[x] = -1
		for u := 0; u < n; u++ {
			if !in[u] {
				continue
			}
			if d := delta(u, x); bestAt[x] < 0 || d < bestDelta[x] {
				bestAt[x], bestDelta[x] = u, d
			}
		}
	}
	for x := 0; x < n; x++ {
		if !in[x] {
			rescan(x)
		}
	}

	for remaining := n - len(cycle); remaining > 0; remaining-- {
		pick := -1
		for x := 0; x < n; x++ {
			if !in[x] && (pick < 0 || bestDelta[x] < bestDelta[pick]) {
				pick = x
			}
		}
		u := bestAt[pick]
		v := next[u]
		next[pick] = v
		next[u] = pick
		in[pick] = true

		for y := 0; y < n; y++ {
			if in[y] {
				continue
			}
			if bestAt[y] == u {
				rescan(y)
				continue
			}
			if d := delta(u, y); d < bestDelta[y] {
				bestAt[y], bestDelta[y] = u, d
			}
			if d := delta(pick, y); d < bestDelta[y] {
				bestAt[y], bestDelta[y] = pick, d
			}
		}
	}

	order := make([]int, 0, n+1)
	v := 0
	for i := 0; i < n; i++ {
		order = append(order, v)
		v = next[v]
	}
	order = append(order, 0)

	return &Tour{Order: order, Cost: cycleCost(g, order)}, nil
}
