package tsp

import (
	"errors"
	"math"
)

// Infinity is the bound of an unsatisfiable subproblem and the value of an
// upper bound that no tour has established yet.
const Infinity = math.MaxInt

var (
	// ErrTourMismatch reports a one-tree certified as a tour whose raw
	// edge-cost sum disagrees with the bound it was certified at.
	ErrTourMismatch = errors.New("tsp: certified tour cost disagrees with its bound")

	// ErrBoundDecreased reports a certified tour cheaper than a lower bound
	// already proven for the same subproblem. Accepting either error
	// silently could prune the optimum away, so both abort the node.
	ErrBoundDecreased = errors.New("tsp: bound decreased within a subgradient run")

	// ErrNotEvaluated is returned by operations that need a lower bound
	// computed first.
	ErrNotEvaluated = errors.New("tsp: node has not been evaluated")

	// ErrTerminalNode is returned when branching is requested on a pruned
	// node or a node certified as a tour.
	ErrTerminalNode = errors.New("tsp: node is pruned or already a tour")

	// ErrConstraintRange reports a constraint edge outside [0, N) or a
	// self-loop.
	ErrConstraintRange = errors.New("tsp: constraint edge out of range")

	// ErrWeightsLength reports a multiplier vector whose length is not N.
	ErrWeightsLength = errors.New("tsp: multiplier vector length mismatch")

	// ErrInvalidTour reports a tour that is not a closed Hamiltonian cycle.
	ErrInvalidTour = errors.New("tsp: invalid tour")

	// ErrBadSeed reports overlapping or out-of-range seed paths.
	ErrBadSeed = errors.New("tsp: invalid seed paths")
)
