// Package tsp — per-node operations of the branch-and-bound search.
//
// An Evaluator binds a graph to the operations run on nodes: the
// subgradient lower bound, the heuristic upper bound, and the two-child
// branching rule. All of them cache their result on the node, so replaying
// one (a retried task) returns the same answer without recomputation.
//
// Branching picks a vertex v and one of its one-tree edges {v,w}:
//
//  1. the first v (by index) of degree > 2 with a cheapest free edge whose
//     endpoints are neither saturated by Included edges nor fully excluded;
//  2. otherwise the first leaf v with no Included edge and a free edge;
//  3. otherwise the first v of degree > 2 with any non-Included tree edge.
//
// The Exclude child is always emitted. The Include child is emitted only if
// neither endpoint would carry a third Included edge and the new edge does
// not close a cycle shorter than N. Children start from the parent's final
// multipliers.
package tsp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/katalvlaran/tspgrid/matrix"
)

// Evaluator runs node operations against one graph. It holds no per-node
// state and is safe for concurrent use on distinct nodes.
type Evaluator struct {
	g   matrix.Graph
	n   int
	log *slog.Logger
}

// NewEvaluator validates g and returns an Evaluator. A nil logger means
// slog.Default().
func NewEvaluator(g matrix.Graph, log *slog.Logger) (*Evaluator, error) {
	if err := matrix.Validate(g); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	return &Evaluator{g: g, n: g.Size(), log: log.With("component", "evaluator")}, nil
}

// Graph returns the graph the evaluator is bound to.
func (e *Evaluator) Graph() matrix.Graph { return e.g }

// Root returns the unconstrained root node.
func (e *Evaluator) Root(iterations int) *Node {
	return &Node{Iterations: iterations}
}

// LowerBound runs the subgradient loop on n once and caches the outcome;
// later calls return the cached record regardless of upper. The node is
// pruned when infeasible or when its bound exceeds upper.
func (e *Evaluator) LowerBound(ctx context.Context, n *Node, upper int) (BoundRecord, error) {
	if n.eval != nil {
		return n.eval.record, nil
	}
	idx, err := newConstraintIndex(n.Constraints, e.n)
	if err != nil {
		return BoundRecord{}, err
	}
	w := make([]float64, e.n)
	if n.Weights != nil {
		if len(n.Weights) != e.n {
			return BoundRecord{}, ErrWeightsLength
		}
		copy(w, n.Weights)
	}
	k := n.Iterations
	if k < 1 {
		k = 1
	}

	run, err := runHeldKarp(ctx, e.g, idx, w, k, upper)
	if err != nil {
		return BoundRecord{}, fmt.Errorf("node at depth %d: %w", n.Depth, err)
	}

	ev := &evaluation{run: run, record: run.BoundRecord, idx: idx, weights: run.Weights}
	switch {
	case run.Bound == Infinity || run.Tree == nil:
		ev.state = StatePruned
	case run.IsTour:
		ev.state = StateTour
		ev.upper = &Tour{Order: run.Tour, Cost: run.Bound}
	case run.Bound > upper:
		ev.state = StatePruned
	default:
		ev.state = StateEvaluated
	}
	n.eval = ev
	e.log.Debug("lower bound",
		"depth", n.Depth,
		"bound", run.Bound,
		"state", ev.state,
		"iterations", run.Iterations)

	return ev.record, nil
}

// UpperBound returns a tour for n's subproblem neighbourhood: the certified
// tour when n is complete, otherwise the cheaper of MatchingTour seeded
// with the one-tree's chains and InsertionTour grown from its cycle.
func (e *Evaluator) UpperBound(n *Node) (*Tour, error) {
	ev := n.eval
	if ev == nil {
		return nil, ErrNotEvaluated
	}
	if ev.upper != nil {
		return ev.upper, nil
	}
	tree := ev.run.Tree
	if tree == nil {
		return nil, ErrTerminalNode
	}

	matched, err := MatchingTour(e.g, tree.Chains())
	if err != nil {
		return nil, err
	}
	inserted, err := InsertionTour(e.g, tree.RootCycle())
	if err != nil {
		return nil, err
	}
	best := matched
	if inserted.Cost < matched.Cost {
		best = inserted
		e.log.Debug("insertion beat matching",
			"depth", n.Depth,
			"matching", matched.Cost,
			"insertion", inserted.Cost)
	}
	ev.upper = best

	return best, nil
}

// Children applies the branching rule to an evaluated node. It returns
// nil when no edge qualifies, which is logged as exhaustion.
func (e *Evaluator) Children(n *Node) ([]*Node, error) {
	ev := n.eval
	if ev == nil {
		return nil, ErrNotEvaluated
	}
	switch ev.state {
	case StatePruned, StateTour:
		return nil, ErrTerminalNode
	}

	v, w := e.branchEdge(ev)
	if v < 0 {
		e.log.Warn("exhaustion: no branching edge", "depth", n.Depth, "bound", ev.record.Bound)
		return nil, nil
	}

	child := func(c Constraints) *Node {
		return &Node{
			Constraints: c,
			Iterations:  n.Iterations,
			Weights:     append([]float64(nil), ev.weights...),
			Depth:       n.Depth + 1,
			Hint:        ev.record.Bound,
		}
	}
	out := []*Node{child(n.Constraints.Exclude(v, w))}
	idx := ev.idx
	if idx.timesIncluded[v] < 2 && idx.timesIncluded[w] < 2 && !idx.closesCycle(v, w) {
		out = append(out, child(n.Constraints.Include(v, w)))
	}
	ev.state = StateBranched
	e.log.Debug("branch", "depth", n.Depth, "v", v, "w", w, "children", len(out))

	return out, nil
}

func (e *Evaluator) branchEdge(ev *evaluation) (int, int) {
	var (
		tree = ev.run.Tree
		idx  = ev.idx
		full = e.n - 2
		v, w int
	)
	for v = 1; v < e.n; v++ {
		if tree.Degree(v) <= 2 || idx.timesIncluded[v] == 2 || idx.timesExcluded[v] == full {
			continue
		}
		if w = tree.cheapestFreeEdge(e.g, idx, v); w >= 0 && idx.timesExcluded[w] != full {
			return v, w
		}
	}
	for v = 1; v < e.n; v++ {
		if tree.Degree(v) >= 2 || idx.timesIncluded[v] != 0 {
			continue
		}
		if w = tree.cheapestFreeEdge(e.g, idx, v); w >= 0 {
			return v, w
		}
	}
	for v = 1; v < e.n; v++ {
		if tree.Degree(v) <= 2 {
			continue
		}
		if w = tree.anyFreeEdge(e.g, idx, v); w >= 0 {
			return v, w
		}
	}

	return -1, -1
}
