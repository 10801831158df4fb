// Package tsp — subgradient ascent on Held–Karp multipliers.
//
// One run performs up to K constrained one-tree builds. After each build
// the multipliers move along a blend of the current and previous degree
// excess:
//
//	π_i += 0.6·t·(deg_i − 2) + 0.4·t·(prev_i − 2)     (only where deg_i ≠ 2)
//
// with t0 = L(π⁰)/(2N) and, for iteration i ≥ 2 and K ≥ 3, the concave
// schedule
//
//	t_i = (i−1)·(2K−5)/(2(K−1))·t0 − (i−2)·t0 + (i−1)(i−2)/(2(K−1)(K−2))·t0
//
// which is quadratic in i and reaches zero at i = K.
// The reported bound is the maximum L seen; the run stops as soon as a
// build is a tour or the bound exceeds the external upper bound.
package tsp

import (
	"context"
	"fmt"

	"github.com/katalvlaran/tspgrid/matrix"
)

const (
	currentShare  = 0.6
	previousShare = 0.4
)

// BoundRecord is the outcome of a lower-bound computation.
type BoundRecord struct {
	Bound  int  `cbor:"b"` // best lower bound, or Infinity if infeasible
	IsTour bool `cbor:"t"` // Bound is the exact cost of Run.Tour
}

// Run is the full trace of one subgradient run.
type Run struct {
	BoundRecord

	// Tour is the certified cycle (closed, from 0) when IsTour.
	Tour []int
	// Trace holds the running maximum after each iteration; Costs holds
	// the raw unweighted cost of each iteration's one-tree.
	Trace []int
	Costs []int
	// Iterations is the number of one-trees built.
	Iterations int
	// Tree is the last one-tree built (nil if none was feasible).
	Tree *OneTree
	// Weights are the multipliers after the run.
	Weights []float64
}

// stepSize returns the step for 1-based iteration i of a K-iteration run.
func stepSize(t0 float64, i, k int) float64 {
	if i <= 1 || k < 3 {
		return t0
	}
	fi, fk := float64(i), float64(k)

	return (fi-1)*((2*fk-5)/(2*(fk-1)))*t0 -
		(fi-2)*t0 +
		(fi-1)*(fi-2)/(2*(fk-1)*(fk-2))*t0
}

// HeldKarp runs the subgradient loop for a subproblem. weights is the
// starting multiplier vector (len N, nil means zeros) and is updated in
// place. upper is the external upper bound used for early stop. K < 1 is
// treated as 1. ctx is checked once per iteration.
//
// A tour certified at a cost that disagrees with its raw edge sum yields
// ErrTourMismatch; one certified below the best bound already proven yields
// ErrBoundDecreased.
//
// Complexity: O(K·N²) time, O(N) memory beyond the constraint index.
func HeldKarp(ctx context.Context, g matrix.Graph, c Constraints, weights []float64, k, upper int) (*Run, error) {
	n := g.Size()
	if weights == nil {
		weights = make([]float64, n)
	}
	if len(weights) != n {
		return nil, ErrWeightsLength
	}
	idx, err := newConstraintIndex(c, n)
	if err != nil {
		return nil, err
	}
	if k < 1 {
		k = 1
	}

	return runHeldKarp(ctx, g, idx, weights, k, upper)
}

func runHeldKarp(ctx context.Context, g matrix.Graph, idx *constraintIndex, w []float64, k, upper int) (*Run, error) {
	var (
		n      = g.Size()
		b      = newTreeBuilder(g, idx)
		degree = make([]int, n)
		prev   = make([]int, n)
		run    = &Run{BoundRecord: BoundRecord{Bound: Infinity}, Weights: w}
		best   = -1
		t0     float64
		i      int
	)
	for iter := 1; iter <= k; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("held-karp iteration %d: %w", iter, err)
		}
		// prev holds the degrees of the previous tree, all zero on the
		// first iteration.
		copy(prev, degree)
		degree = make([]int, n)
		tree := b.build(w, degree)
		run.Iterations = iter
		if !tree.Feasible() {
			run.Bound, run.IsTour, run.Tree = Infinity, false, nil
			return run, nil
		}
		run.Tree = tree
		u := tree.Unweighted()
		run.Costs = append(run.Costs, u)
		if iter == 1 {
			t0 = float64(u) / float64(2*n)
		}

		if tree.IsTour() {
			if raw := tree.RawCost(g); raw != u {
				return nil, fmt.Errorf("one-tree cost %d, raw tour cost %d: %w", u, raw, ErrTourMismatch)
			}
			if u < best {
				return nil, fmt.Errorf("tour %d below proven bound %d: %w", u, best, ErrBoundDecreased)
			}
			best = u
			run.Trace = append(run.Trace, best)
			run.Bound, run.IsTour, run.Tour = best, true, tree.Tour()
			return run, nil
		}
		if u > best {
			best = u
		}
		run.Trace = append(run.Trace, best)
		run.Bound = best
		if best > upper {
			return run, nil
		}

		t := stepSize(t0, iter, k)
		for i = 1; i < n; i++ {
			if d := degree[i]; d != 2 {
				w[i] += currentShare*t*float64(d-2) + previousShare*t*float64(prev[i]-2)
			}
		}
	}

	return run, nil
}
