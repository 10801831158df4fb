// Package tsp — depth-first subtree exploration.
//
// Explore evaluates a node and all of its descendants on the calling
// goroutine, with an explicit stack in place of recursion. A node is
// dropped when pruned against the shared upper bound, or when its own
// heuristic tour already matches its lower bound. Certified and heuristic
// tours lower the shared bound as they are found.
package tsp

import (
	"context"
	"fmt"

	"github.com/katalvlaran/tspgrid/matrix"
)

// ExploreResult summarizes one subtree exploration.
type ExploreResult struct {
	// Tour is the best tour that lowered the shared bound during the
	// exploration, or nil if none did.
	Tour *Tour

	Nodes     int // nodes evaluated
	Pruned    int // nodes pruned by bound or infeasibility
	Tours     int // nodes certified as tours
	Branched  int // nodes that produced children
	Exhausted int // nodes left without a branching edge
}

// Add folds r2 into r, keeping the cheaper tour.
func (r *ExploreResult) Add(r2 ExploreResult) {
	if r2.Tour != nil && (r.Tour == nil || r2.Tour.Cost < r.Tour.Cost) {
		r.Tour = r2.Tour
	}
	r.Nodes += r2.Nodes
	r.Pruned += r2.Pruned
	r.Tours += r2.Tours
	r.Branched += r2.Branched
	r.Exhausted += r2.Exhausted
}

// Step evaluates a single node against ub: lower bound, heuristic upper
// bound and branching. It returns the children to schedule (nil when the
// node is terminal) and the node's contribution to the statistics.
func (e *Evaluator) Step(ctx context.Context, n *Node, ub *UpperBound) ([]*Node, ExploreResult, error) {
	var res ExploreResult
	rec, err := e.LowerBound(ctx, n, ub.Value())
	if err != nil {
		return nil, res, err
	}
	res.Nodes = 1

	offer := func(t *Tour) {
		if ub.Lower(t.Cost) {
			res.Tour = t.Clone()
		}
	}
	switch n.State() {
	case StatePruned:
		res.Pruned = 1
		return nil, res, nil
	case StateTour:
		res.Tours = 1
		offer(n.eval.upper)
		return nil, res, nil
	}

	t, err := e.UpperBound(n)
	if err != nil {
		return nil, res, err
	}
	offer(t)
	if t.Cost == rec.Bound || rec.Bound > ub.Value() {
		res.Pruned = 1
		return nil, res, nil
	}

	children, err := e.Children(n)
	if err != nil {
		return nil, res, err
	}
	if len(children) == 0 {
		res.Exhausted = 1
		return nil, res, nil
	}
	res.Branched = 1

	return children, res, nil
}

// Explore searches the subtree rooted at n depth-first. The Include child
// of every branching is explored before its Exclude sibling.
func (e *Evaluator) Explore(ctx context.Context, n *Node, ub *UpperBound) (ExploreResult, error) {
	var total ExploreResult
	stack := []*Node{n}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("explore after %d nodes: %w", total.Nodes, err)
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, res, err := e.Step(ctx, top, ub)
		if err != nil {
			return total, err
		}
		total.Add(res)
		stack = append(stack, children...)
	}

	return total, nil
}

// Solve runs a sequential branch-and-bound search from the root with the
// given subgradient budget and initial upper bound (Infinity for none).
// The returned tour is nil only if no tour cheaper than upper exists.
func Solve(ctx context.Context, g matrix.Graph, iterations, upper int) (*Tour, ExploreResult, error) {
	e, err := NewEvaluator(g, nil)
	if err != nil {
		return nil, ExploreResult{}, err
	}
	res, err := e.Explore(ctx, e.Root(iterations), NewUpperBound(upper))
	if err != nil {
		return nil, res, err
	}

	return res.Tour, res, nil
}
