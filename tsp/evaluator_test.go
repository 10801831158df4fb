package tsp_test

import (
	"context"
	"testing"

	"github.com/katalvlaran/tspgrid/codec"
	"github.com/katalvlaran/tspgrid/tsp"
	"github.com/stretchr/testify/require"
)

// branchable returns an evaluated root that is neither pruned nor a tour.
func branchable(t *testing.T, n int) (*tsp.Evaluator, *tsp.Node) {
	t.Helper()
	for seed := int64(1); seed < 50; seed++ {
		e, err := tsp.NewEvaluator(randomDense(t, n, seed), nil)
		require.NoError(t, err)
		root := e.Root(5)
		_, err = e.LowerBound(context.Background(), root, tsp.Infinity)
		require.NoError(t, err)
		if root.State() == tsp.StateEvaluated {
			return e, root
		}
	}
	t.Fatal("no branchable instance found")

	return nil, nil
}

func TestLowerBound_Idempotent(t *testing.T) {
	e, err := tsp.NewEvaluator(randomEuclid(t, 10, seedDet), nil)
	require.NoError(t, err)
	n := e.Root(kTest)
	n.Weights = make([]float64, 10)

	first, err := e.LowerBound(context.Background(), n, tsp.Infinity)
	require.NoError(t, err)
	run := n.Run()
	require.Equal(t, make([]float64, 10), n.Weights, "input multipliers untouched")

	again, err := e.LowerBound(context.Background(), n, 0)
	require.NoError(t, err)
	require.Equal(t, first, again)
	require.Same(t, run, n.Run())

	// A fresh copy recomputes the same answer.
	fresh := n.Detach()
	require.Equal(t, tsp.StateUnevaluated, fresh.State())
	third, err := e.LowerBound(context.Background(), fresh, tsp.Infinity)
	require.NoError(t, err)
	require.Equal(t, first, third)
}

func TestLowerBound_PrunedAboveUpper(t *testing.T) {
	e, err := tsp.NewEvaluator(randomEuclid(t, 10, seedDet), nil)
	require.NoError(t, err)
	n := e.Root(kTest)
	_, err = e.LowerBound(context.Background(), n, 1)
	require.NoError(t, err)
	require.Equal(t, tsp.StatePruned, n.State())

	_, err = e.Children(n)
	require.ErrorIs(t, err, tsp.ErrTerminalNode)
}

func TestChildren_Contract(t *testing.T) {
	e, root := branchable(t, 9)
	rec, _ := root.Bound()

	children, err := e.Children(root)
	require.NoError(t, err)
	require.NotEmpty(t, children)
	require.LessOrEqual(t, len(children), 2)
	require.Equal(t, tsp.StateBranched, root.State())

	ex := children[0]
	require.Len(t, ex.Constraints.Excluded, 2)
	require.Empty(t, ex.Constraints.Included)
	e0 := ex.Constraints.Excluded[0]
	require.Equal(t, tsp.Edge{From: e0.To, To: e0.From}, ex.Constraints.Excluded[1])

	for _, c := range children {
		require.Equal(t, root.Depth+1, c.Depth)
		require.Equal(t, root.Iterations, c.Iterations)
		require.Equal(t, rec.Bound, c.Hint)
		require.Len(t, c.Weights, 9)
		require.Equal(t, tsp.StateUnevaluated, c.State())
	}
	if len(children) == 2 {
		in := children[1]
		require.Len(t, in.Constraints.Included, 2)
		require.True(t, in.Constraints.IsIncluded(e0.From, e0.To))

		in.Weights[1] += 1000
		require.NotEqual(t, in.Weights[1], ex.Weights[1], "children own their multipliers")
	}

	again, err := e.Children(root)
	require.NoError(t, err)
	require.Equal(t, children[0].Constraints, again[0].Constraints)
}

func TestChildren_NeverExhaustOnFeasibleNodes(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 6; seed++ {
		e, err := tsp.NewEvaluator(randomDense(t, 8, seed), nil)
		require.NoError(t, err)
		frontier := []*tsp.Node{e.Root(3)}
		for steps := 0; len(frontier) > 0 && steps < 200; steps++ {
			n := frontier[0]
			frontier = frontier[1:]
			_, err := e.LowerBound(ctx, n, tsp.Infinity)
			require.NoError(t, err)
			if n.State() != tsp.StateEvaluated {
				continue
			}
			kids, err := e.Children(n)
			require.NoError(t, err)
			require.NotEmpty(t, kids, "seed %d depth %d", seed, n.Depth)
			frontier = append(frontier, kids...)
		}
	}
}

func TestChildren_RequiresEvaluation(t *testing.T) {
	e, err := tsp.NewEvaluator(randomDense(t, 5, seedDet), nil)
	require.NoError(t, err)
	_, err = e.Children(e.Root(kTest))
	require.ErrorIs(t, err, tsp.ErrNotEvaluated)
	_, err = e.UpperBound(e.Root(kTest))
	require.ErrorIs(t, err, tsp.ErrNotEvaluated)
}

func TestUpperBound_AtLeastLowerBound(t *testing.T) {
	ctx := context.Background()
	for seed := int64(1); seed <= 10; seed++ {
		g := randomEuclid(t, 12, seed)
		e, err := tsp.NewEvaluator(g, nil)
		require.NoError(t, err)
		n := e.Root(kTest)
		rec, err := e.LowerBound(ctx, n, tsp.Infinity)
		require.NoError(t, err)

		tour, err := e.UpperBound(n)
		require.NoError(t, err)
		require.NoError(t, tsp.ValidateTour(tour.Order, 12))
		require.GreaterOrEqual(t, tour.Cost, rec.Bound)
		if rec.IsTour {
			require.Equal(t, rec.Bound, tour.Cost)
		}
	}
}

func TestNode_WireForm(t *testing.T) {
	e, root := branchable(t, 7)
	children, err := e.Children(root)
	require.NoError(t, err)

	child := children[len(children)-1]
	b, err := codec.Marshal(child)
	require.NoError(t, err)

	var got tsp.Node
	require.NoError(t, codec.Unmarshal(b, &got))
	require.Equal(t, child.Constraints, got.Constraints)
	require.Equal(t, child.Weights, got.Weights)
	require.Equal(t, child.Depth, got.Depth)
	require.Equal(t, child.Hint, got.Hint)
	require.Equal(t, tsp.StateUnevaluated, got.State())

	want, err := e.LowerBound(context.Background(), child, tsp.Infinity)
	require.NoError(t, err)
	have, err := e.LowerBound(context.Background(), &got, tsp.Infinity)
	require.NoError(t, err)
	require.Equal(t, want, have)
}
