package tsp_test

import (
	"context"
	"slices"
	"testing"

	"github.com/katalvlaran/tspgrid/tsp"
	"github.com/stretchr/testify/require"
)

func TestHeldKarp_SquareBoundIsFour(t *testing.T) {
	run, err := tsp.HeldKarp(context.Background(), unitSquare(t, 100, 141), tsp.Constraints{}, nil, kTest, tsp.Infinity)
	require.NoError(t, err)
	require.True(t, run.IsTour)
	require.Equal(t, 400, run.Bound)
	require.NoError(t, tsp.ValidateTour(run.Tour, 4))
	require.Equal(t, 1, run.Iterations)
}

// With every edge equal tie-breaking decides the tree shape, so only the
// bound is fixed.
func TestHeldKarp_AllEqualSquareBound(t *testing.T) {
	run, err := tsp.HeldKarp(context.Background(), unitSquare(t, 1, 1), tsp.Constraints{}, nil, kTest, tsp.Infinity)
	require.NoError(t, err)
	require.Equal(t, 4, run.Bound)
	if run.IsTour {
		require.NoError(t, tsp.ValidateTour(run.Tour, 4))
	}
}

func TestHeldKarp_FirstUpdateUsesZeroPreviousDegree(t *testing.T) {
	c := tsp.Constraints{}.Exclude(0, 1)
	run, err := tsp.HeldKarp(context.Background(), unitSquare(t, 100, 141), c, nil, 1, tsp.Infinity)
	require.NoError(t, err)
	require.False(t, run.IsTour)
	require.Equal(t, 441, run.Bound)

	step := 441.0 / 8
	require.Zero(t, run.Weights[0])
	updated := 0
	for v := 1; v < 4; v++ {
		d := run.Tree.Degree(v)
		want := 0.0
		if d != 2 {
			want = 0.6*step*float64(d-2) + 0.4*step*float64(0-2)
			updated++
		}
		require.InDelta(t, want, run.Weights[v], 1e-9, "vertex %d", v)
	}
	require.Positive(t, updated)
}

func TestHeldKarp_ExcludedEdgeRaisesBound(t *testing.T) {
	g := unitSquare(t, 100, 141)
	c := tsp.Constraints{}.Exclude(0, 1)

	one, err := tsp.HeldKarp(context.Background(), g, c, nil, 1, tsp.Infinity)
	require.NoError(t, err)
	require.Equal(t, 441, one.Bound)
	require.False(t, one.IsTour)

	many, err := tsp.HeldKarp(context.Background(), g, c, nil, kTest, tsp.Infinity)
	require.NoError(t, err)
	require.GreaterOrEqual(t, many.Bound, 441)
	require.LessOrEqual(t, many.Bound, 482)
}

func TestHeldKarp_TraceMonotoneAndAdmissible(t *testing.T) {
	for seed := int64(1); seed <= 12; seed++ {
		g := randomEuclid(t, 8, seed)
		opt := bruteForce(g)

		run, err := tsp.HeldKarp(context.Background(), g, tsp.Constraints{}, nil, kTest, tsp.Infinity)
		require.NoError(t, err)
		require.True(t, slices.IsSorted(run.Trace), "trace must be non-decreasing")
		require.Equal(t, slices.Max(run.Costs), run.Bound)
		require.Equal(t, run.Bound, run.Trace[len(run.Trace)-1])
		require.LessOrEqual(t, run.Bound, opt, "seed %d", seed)
		if run.IsTour {
			require.Equal(t, opt, run.Bound)
			cost, err := tsp.TourCost(g, run.Tour)
			require.NoError(t, err)
			require.Equal(t, run.Bound, cost)
		}
	}
}

func TestHeldKarp_StopsAboveUpper(t *testing.T) {
	g := randomDense(t, 10, seedDet)
	full, err := tsp.HeldKarp(context.Background(), g, tsp.Constraints{}, nil, kTest, tsp.Infinity)
	require.NoError(t, err)
	if full.IsTour || full.Costs[0] == 0 {
		t.Skip("instance solved at the root")
	}

	run, err := tsp.HeldKarp(context.Background(), g, tsp.Constraints{}, nil, kTest, full.Costs[0]-1)
	require.NoError(t, err)
	require.Equal(t, 1, run.Iterations)
	require.Greater(t, run.Bound, full.Costs[0]-1)
}

func TestHeldKarp_Infeasible(t *testing.T) {
	g := randomDense(t, 6, seedDet)
	c := tsp.Constraints{}.Include(1, 2).Exclude(1, 2)
	run, err := tsp.HeldKarp(context.Background(), g, c, nil, kTest, tsp.Infinity)
	require.NoError(t, err)
	require.Equal(t, tsp.Infinity, run.Bound)
	require.Nil(t, run.Tree)
}

func TestHeldKarp_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tsp.HeldKarp(ctx, randomDense(t, 6, seedDet), tsp.Constraints{}, nil, kTest, tsp.Infinity)
	require.ErrorIs(t, err, context.Canceled)
}

func TestHeldKarp_MutatesOnlyGivenWeights(t *testing.T) {
	g := randomEuclid(t, 9, seedDet)
	w := make([]float64, 9)
	_, err := tsp.HeldKarp(context.Background(), g, tsp.Constraints{}, w, kTest, tsp.Infinity)
	require.NoError(t, err)
	require.Zero(t, w[0], "root multiplier stays zero")

	_, err = tsp.HeldKarp(context.Background(), g, tsp.Constraints{}, make([]float64, 3), kTest, tsp.Infinity)
	require.ErrorIs(t, err, tsp.ErrWeightsLength)
}

func TestStepSize_Schedule(t *testing.T) {
	const t0 = 10.0
	require.InDelta(t, t0, tsp.StepSize(t0, 1, 50), 1e-12)
	require.InDelta(t, t0, tsp.StepSize(t0, 7, 2), 1e-12, "short runs keep t0")
	require.InDelta(t, 0, tsp.StepSize(t0, 50, 50), 1e-9)

	prev := tsp.StepSize(t0, 2, 50)
	for i := 3; i <= 50; i++ {
		cur := tsp.StepSize(t0, i, 50)
		require.LessOrEqual(t, cur, prev+1e-12)
		prev = cur
	}
}
