package tsp

import "fmt"

// Edge is a directed (from, to) entry of a constraint list. Membership is
// symmetric: every constrained edge {u,v} is stored as both (u,v) and (v,u).
type Edge struct {
	From int `cbor:"f"`
	To   int `cbor:"t"`
}

// Constraints are the branching decisions of a subproblem. A branching
// step grows exactly one list by one symmetric pair; lists never shrink.
// Values are immutable in practice: Include and Exclude return new sets
// and never touch the receiver's backing arrays.
type Constraints struct {
	Included []Edge `cbor:"inc,omitempty"`
	Excluded []Edge `cbor:"exc,omitempty"`
}

// Include returns a copy of c with {u,v} forced into every tour.
func (c Constraints) Include(u, v int) Constraints {
	out := c.Clone()
	out.Included = append(out.Included, Edge{From: u, To: v}, Edge{From: v, To: u})

	return out
}

// Exclude returns a copy of c with {u,v} forbidden in every tour.
func (c Constraints) Exclude(u, v int) Constraints {
	out := c.Clone()
	out.Excluded = append(out.Excluded, Edge{From: u, To: v}, Edge{From: v, To: u})

	return out
}

// Clone returns a deep copy.
func (c Constraints) Clone() Constraints {
	out := Constraints{}
	if len(c.Included) > 0 {
		out.Included = append(make([]Edge, 0, len(c.Included)+2), c.Included...)
	}
	if len(c.Excluded) > 0 {
		out.Excluded = append(make([]Edge, 0, len(c.Excluded)+2), c.Excluded...)
	}

	return out
}

// IsIncluded reports whether (u,v) is forced in.
func (c Constraints) IsIncluded(u, v int) bool { return contains(c.Included, u, v) }

// IsExcluded reports whether (u,v) is forbidden.
func (c Constraints) IsExcluded(u, v int) bool { return contains(c.Excluded, u, v) }

// TimesIncluded counts forced edges incident to v.
func (c Constraints) TimesIncluded(v int) int { return countFrom(c.Included, v) }

// TimesExcluded counts forbidden edges incident to v.
func (c Constraints) TimesExcluded(v int) int { return countFrom(c.Excluded, v) }

// ClosesCycle reports whether forcing {u,v} in would close a cycle through
// Included edges that does not visit all n vertices. The walk follows the
// included path starting at u, so it is bounded by the path length.
func (c Constraints) ClosesCycle(u, v, n int) bool {
	var (
		prev  = -1
		cur   = u
		steps = 1
	)
	for {
		next := -1
		for _, e := range c.Included {
			if e.From == cur && e.To != prev {
				next = e.To
				break
			}
		}
		if next < 0 || next == u {
			return false
		}
		steps++
		if next == v {
			return steps < n
		}
		if steps > n {
			return false
		}
		prev, cur = cur, next
	}
}

func contains(list []Edge, u, v int) bool {
	for _, e := range list {
		if e.From == u && e.To == v {
			return true
		}
	}

	return false
}

func countFrom(list []Edge, v int) int {
	var k int
	for _, e := range list {
		if e.From == v {
			k++
		}
	}

	return k
}

// constraintIndex is the O(1)-lookup form of a Constraints value, built
// once per evaluation and owned by it.
type constraintIndex struct {
	n             int
	excluded      []bool  // n*n, symmetric
	included      [][]int // forced partners per vertex
	timesIncluded []int
	timesExcluded []int
	conflict      bool // some edge both included and excluded, or a vertex with >2 forced edges
}

func newConstraintIndex(c Constraints, n int) (*constraintIndex, error) {
	idx := &constraintIndex{
		n:             n,
		excluded:      make([]bool, n*n),
		included:      make([][]int, n),
		timesIncluded: make([]int, n),
		timesExcluded: make([]int, n),
	}
	for _, e := range c.Excluded {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n || e.From == e.To {
			return nil, fmt.Errorf("excluded (%d,%d): %w", e.From, e.To, ErrConstraintRange)
		}
		if !idx.excluded[e.From*n+e.To] {
			idx.excluded[e.From*n+e.To] = true
			idx.timesExcluded[e.From]++
		}
	}
	for _, e := range c.Included {
		if e.From < 0 || e.From >= n || e.To < 0 || e.To >= n || e.From == e.To {
			return nil, fmt.Errorf("included (%d,%d): %w", e.From, e.To, ErrConstraintRange)
		}
		if idx.isIncluded(e.From, e.To) {
			continue
		}
		idx.included[e.From] = append(idx.included[e.From], e.To)
		idx.timesIncluded[e.From]++
		if idx.excluded[e.From*n+e.To] || idx.timesIncluded[e.From] > 2 {
			idx.conflict = true
		}
	}

	return idx, nil
}

func (x *constraintIndex) isExcluded(u, v int) bool { return x.excluded[u*x.n+v] }

func (x *constraintIndex) isIncluded(u, v int) bool {
	for _, w := range x.included[u] {
		if w == v {
			return true
		}
	}

	return false
}

// closesCycle mirrors Constraints.ClosesCycle on the indexed form.
func (x *constraintIndex) closesCycle(u, v int) bool {
	var (
		prev  = -1
		cur   = u
		steps = 1
	)
	for {
		next := -1
		for _, w := range x.included[cur] {
			if w != prev {
				next = w
				break
			}
		}
		if next < 0 || next == u {
			return false
		}
		steps++
		if next == v {
			return steps < x.n
		}
		if steps > x.n {
			return false
		}
		prev, cur = cur, next
	}
}
