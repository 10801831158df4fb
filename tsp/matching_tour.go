// Package tsp — tour construction by iterative minimum-weight matching.
//
// Start from a set of vertex-disjoint paths (seed chains from a one-tree,
// plus one singleton per uncovered vertex). While more than four paths
// remain, pair the paths up by a minimum-weight perfect matching in which
// the cost of a pair is the cheapest of its four endpoint joins, and
// concatenate every matched pair in that orientation. An odd path count
// gets a zero-cost dummy partner; its mate survives unchanged. Every round
// takes m > 4 paths to ⌈m/2⌉, so the loop ends after O(log N) rounds.
//
// With at most four paths left the best closing is found exactly: every
// distinct cyclic order of the paths (one for k ≤ 3, three for k = 4) is
// tried under all 2^k orientations.
//
// Complexity: O(N³) for the first matching round, then geometrically less.
package tsp

import (
	"fmt"

	"github.com/katalvlaran/tspgrid/matching"
	"github.com/katalvlaran/tspgrid/matrix"
)

// skeletons lists the distinct cyclic orders of k paths up to rotation and
// reversal, with path 0 first.
var skeletons = [5][][]int{
	1: {{0}},
	2: {{0, 1}},
	3: {{0, 1, 2}},
	4: {{0, 1, 2, 3}, {0, 1, 3, 2}, {0, 2, 1, 3}},
}

// MatchingTour builds a tour by matching-based path merging starting from
// seeds (vertex-disjoint paths; may be nil). Seeds that overlap or name a
// vertex outside [0,N) yield ErrBadSeed.
func MatchingTour(g matrix.Graph, seeds [][]int) (*Tour, error) {
	n := g.Size()
	paths, err := initialPaths(n, seeds)
	if err != nil {
		return nil, err
	}

	for len(paths) > 4 {
		if paths, err = mergeRound(g, paths); err != nil {
			return nil, err
		}
	}

	order := closePaths(g, paths)
	tour := closeCycle(order)

	return &Tour{Order: tour, Cost: cycleCost(g, tour)}, nil
}

func initialPaths(n int, seeds [][]int) ([][]int, error) {
	covered := make([]bool, n)
	paths := make([][]int, 0, n)
	for i, s := range seeds {
		if len(s) == 0 {
			continue
		}
		for _, v := range s {
			if v < 0 || v >= n || covered[v] {
				return nil, fmt.Errorf("seed %d vertex %d: %w", i, v, ErrBadSeed)
			}
			covered[v] = true
		}
		paths = append(paths, append([]int(nil), s...))
	}
	for v := 0; v < n; v++ {
		if !covered[v] {
			paths = append(paths, []int{v})
		}
	}

	return paths, nil
}

// joinCost returns the cheapest way to connect a and b end to start, and
// whether each must be reversed to achieve it.
func joinCost(g matrix.Graph, a, b []int) (cost int, revA, revB bool) {
	af, al := a[0], a[len(a)-1]
	bf, bl := b[0], b[len(b)-1]
	cost = g.Cost(al, bf)
	if c := g.Cost(al, bl); c < cost {
		cost, revA, revB = c, false, true
	}
	if c := g.Cost(af, bf); c < cost {
		cost, revA, revB = c, true, false
	}
	if c := g.Cost(af, bl); c < cost {
		cost, revA, revB = c, true, true
	}

	return cost, revA, revB
}

func mergeRound(g matrix.Graph, paths [][]int) ([][]int, error) {
	m := len(paths)
	size := m
	if size%2 == 1 {
		size++
	}
	weight := func(i, j int) int64 {
		if i >= m || j >= m {
			return 0
		}
		c, _, _ := joinCost(g, paths[i], paths[j])
		return int64(c)
	}
	mate, err := matching.MinWeightPerfect(size, weight)
	if err != nil {
		return nil, fmt.Errorf("merge %d paths: %w", m, err)
	}

	out := make([][]int, 0, size/2)
	for i := 0; i < m; i++ {
		j := mate[i]
		switch {
		case j >= m:
			out = append(out, paths[i])
		case i < j:
			out = append(out, concat(g, paths[i], paths[j]))
		}
	}

	return out, nil
}

func concat(g matrix.Graph, a, b []int) []int {
	_, revA, revB := joinCost(g, a, b)
	out := make([]int, 0, len(a)+len(b))
	out = appendOriented(out, a, revA)
	return appendOriented(out, b, revB)
}

func appendOriented(dst, p []int, reverse bool) []int {
	if !reverse {
		return append(dst, p...)
	}
	for i := len(p) - 1; i >= 0; i-- {
		dst = append(dst, p[i])
	}

	return dst
}

func pathCost(g matrix.Graph, p []int) int {
	var sum int
	for i := 0; i+1 < len(p); i++ {
		sum += g.Cost(p[i], p[i+1])
	}

	return sum
}

// closePaths joins at most four paths into the cheapest open Hamiltonian
// sequence whose closing edge is included in the comparison.
func closePaths(g matrix.Graph, paths [][]int) []int {
	k := len(paths)
	if k == 0 {
		return nil
	}
	var internal int
	for _, p := range paths {
		internal += pathCost(g, p)
	}

	var (
		best     []int
		bestCost int
		ends     = func(p []int, rev bool) (int, int) {
			if rev {
				return p[len(p)-1], p[0]
			}
			return p[0], p[len(p)-1]
		}
	)
	for _, sk := range skeletons[k] {
		for mask := 0; mask < 1<<k; mask++ {
			cost := internal
			for pos := 0; pos < k; pos++ {
				cur, next := sk[pos], sk[(pos+1)%k]
				_, tail := ends(paths[cur], mask&(1<<pos) != 0)
				head, _ := ends(paths[next], mask&(1<<((pos+1)%k)) != 0)
				cost += g.Cost(tail, head)
			}
			if best == nil || cost < bestCost {
				bestCost = cost
				best = best[:0]
				for pos := 0; pos < k; pos++ {
					best = appendOriented(best, paths[sk[pos]], mask&(1<<pos) != 0)
				}
			}
		}
	}

	return best
}
