// Package tsp — first-improvement 2-opt.
//
// For positions i < k of a closed tour, reversing tour[i..k] replaces
// edges (a,b) = (tour[i-1],tour[i]) and (c,d) = (tour[k],tour[k+1]) by
// (a,c) and (b,d). The scan restarts after every improving move and stops
// at a local optimum or after maxMoves moves (0 means no limit).
package tsp

import (
	"context"
	"fmt"

	"github.com/katalvlaran/tspgrid/matrix"
)

// TwoOpt improves t by 2-opt moves and returns a new tour; t is not
// modified. ctx is checked between sweeps.
func TwoOpt(ctx context.Context, g matrix.Graph, t *Tour, maxMoves int) (*Tour, error) {
	n := g.Size()
	if err := ValidateTour(t.Order, n); err != nil {
		return nil, err
	}
	cur := append([]int(nil), t.Order...)
	cost := cycleCost(g, cur)

	moves := 0
	for improved := true; improved; {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("2-opt after %d moves: %w", moves, err)
		}
		improved = false
	scan:
		for i := 1; i < n-1; i++ {
			a, b := cur[i-1], cur[i]
			for k := i + 1; k < n; k++ {
				c, d := cur[k], cur[k+1]
				delta := g.Cost(a, c) + g.Cost(b, d) - g.Cost(a, b) - g.Cost(c, d)
				if delta < 0 {
					for l, r := i, k; l < r; l, r = l+1, r-1 {
						cur[l], cur[r] = cur[r], cur[l]
					}
					cost += delta
					moves++
					improved = maxMoves == 0 || moves < maxMoves
					break scan
				}
			}
		}
	}

	return &Tour{Order: cur, Cost: cost}, nil
}

// InitialTour returns the better of Christofides and MatchingTour, each
// polished by 2-opt. It is used to seed a solve's upper bound.
func InitialTour(ctx context.Context, g matrix.Graph) (*Tour, error) {
	var best *Tour
	for _, build := range []func(matrix.Graph) (*Tour, error){
		Christofides,
		func(g matrix.Graph) (*Tour, error) { return MatchingTour(g, nil) },
	} {
		t, err := build(g)
		if err != nil {
			return nil, err
		}
		if g.Size() >= 4 {
			if t, err = TwoOpt(ctx, g, t, 0); err != nil {
				return nil, err
			}
		}
		if best == nil || t.Cost < best.Cost {
			best = t
		}
	}

	return best, nil
}
