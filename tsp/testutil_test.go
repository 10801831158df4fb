// Package tsp_test shares small instance builders and an exhaustive
// reference solver across the tsp tests.
package tsp_test

import (
	"testing"

	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/stretchr/testify/require"
)

const (
	// kTest is the subgradient budget used by most tests.
	kTest = 60
	// seedDet keeps random instances reproducible.
	seedDet = int64(7)
)

func mustDense(t *testing.T, rows [][]int) *matrix.Dense {
	t.Helper()
	d, err := matrix.NewDenseFromRows(rows)
	require.NoError(t, err)
	require.NoError(t, matrix.Validate(d))

	return d
}

// unitSquare is the square 0-1-2-3 with side s and diagonal d.
func unitSquare(t *testing.T, s, d int) *matrix.Dense {
	return mustDense(t, [][]int{
		{0, s, d, s},
		{s, 0, s, d},
		{d, s, 0, s},
		{s, d, s, 0},
	})
}

func randomEuclid(t *testing.T, n int, seed int64) *matrix.Dense {
	t.Helper()
	d, _, err := matrix.RandomEuclidean(n, 1000, seed)
	require.NoError(t, err)

	return d
}

func randomDense(t *testing.T, n int, seed int64) *matrix.Dense {
	t.Helper()
	d, err := matrix.Random(n, 100, seed)
	require.NoError(t, err)

	return d
}

// bruteForce returns the optimal tour cost by enumerating all
// permutations of 1..n-1. Only for n ≤ 9.
func bruteForce(g matrix.Graph) int {
	n := g.Size()
	best := -1
	used := make([]bool, n)
	var rec func(last, depth, cost int)
	rec = func(last, depth, cost int) {
		if best >= 0 && cost >= best {
			return
		}
		if depth == n {
			if c := cost + g.Cost(last, 0); best < 0 || c < best {
				best = c
			}
			return
		}
		for v := 1; v < n; v++ {
			if !used[v] {
				used[v] = true
				rec(v, depth+1, cost+g.Cost(last, v))
				used[v] = false
			}
		}
	}
	used[0] = true
	rec(0, 1, 0)

	return best
}

// hasEdge reports whether {u,v} is consecutive in a closed tour.
func hasEdge(order []int, u, v int) bool {
	for i := 0; i+1 < len(order); i++ {
		a, b := order[i], order[i+1]
		if (a == u && b == v) || (a == v && b == u) {
			return true
		}
	}

	return false
}

// Repeat runs fn n times; used to pin determinism.
func Repeat(t *testing.T, n int, fn func(t *testing.T)) {
	t.Helper()
	var i int
	for i = 0; i < n; i++ {
		fn(t)
	}
}
