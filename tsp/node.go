package tsp

// State is the lifecycle stage of a Node.
type State uint8

const (
	// StateUnevaluated nodes have not had their lower bound computed.
	StateUnevaluated State = iota
	// StateEvaluated nodes carry a bound and may be branched.
	StateEvaluated
	// StatePruned nodes are infeasible or bounded above the upper bound.
	StatePruned
	// StateTour nodes were certified optimal for their subproblem.
	StateTour
	// StateBranched nodes have produced their children.
	StateBranched
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnevaluated:
		return "unevaluated"
	case StateEvaluated:
		return "evaluated"
	case StatePruned:
		return "pruned"
	case StateTour:
		return "tour"
	case StateBranched:
		return "branched"
	default:
		return "unknown"
	}
}

// Node is one subproblem of the search tree. Every exported field is
// plain data so a node can be encoded and evaluated on another process;
// the evaluation cache is local and never transmitted.
type Node struct {
	Constraints Constraints `cbor:"c"`
	// Iterations is the subgradient budget K.
	Iterations int `cbor:"k"`
	// Weights are the starting multipliers (nil means zeros). They are
	// never modified by evaluation.
	Weights []float64 `cbor:"w,omitempty"`
	// Depth is the number of branching steps from the root.
	Depth int `cbor:"d"`
	// Hint is the parent's lower bound, used to order a work queue.
	Hint int `cbor:"h"`

	eval *evaluation
}

// evaluation caches everything computed for a node on this process.
type evaluation struct {
	run     *Run
	record  BoundRecord
	state   State
	idx     *constraintIndex
	weights []float64 // multipliers after the run
	upper   *Tour     // cached heuristic tour
}

// State returns the node's lifecycle stage.
func (n *Node) State() State {
	if n.eval == nil {
		return StateUnevaluated
	}

	return n.eval.state
}

// Bound returns the cached bound record and whether one exists.
func (n *Node) Bound() (BoundRecord, bool) {
	if n.eval == nil {
		return BoundRecord{}, false
	}

	return n.eval.record, true
}

// IsComplete reports whether the lower bound certified a tour.
func (n *Node) IsComplete() bool { return n.State() == StateTour }

// Run returns the subgradient trace of the evaluation, or nil.
func (n *Node) Run() *Run {
	if n.eval == nil {
		return nil
	}

	return n.eval.run
}

// Detach returns a copy of n without its evaluation cache, suitable for
// shipping to another process.
func (n *Node) Detach() *Node {
	out := *n
	out.eval = nil
	out.Constraints = n.Constraints.Clone()
	if n.Weights != nil {
		out.Weights = append([]float64(nil), n.Weights...)
	}

	return &out
}
