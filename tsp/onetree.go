// Package tsp — constrained minimum one-tree (Held–Karp relaxation).
//
// With vertex 0 as the root and multipliers π (π_0 = 0), reduced costs are
//
//	c'_{ij} = c_{ij} + π_i + π_j .
//
// A minimum one-tree is an MST over {1..N-1} on c' plus the two cheapest
// root edges. Every Hamiltonian cycle is a one-tree, so its unweighted cost
//
//	L(π) = cost_c'(T) − 2·Σ π_i
//
// is a lower bound on the optimal tour, and a one-tree in which every
// vertex has degree 2 is itself a tour.
//
// Constraints are honoured inside Prim: an Excluded edge is never a
// candidate, and when a vertex joins the tree every Included partner is
// pulled in through its forced edge, recursively. Since Included edges
// form vertex-disjoint paths, this is Prim on the graph with each forced
// path contracted, so the tree is minimum among trees containing them.
// Forced root edges are taken first and marked locked.
//
// Complexity: O(n²) time per build, O(n) working memory reused across
// builds of one subgradient run.
package tsp

import (
	"math"

	"github.com/katalvlaran/tspgrid/matrix"
)

// OneTree is the result of one constrained build.
type OneTree struct {
	n      int
	parent []int // MST parent over {1..n-1}; -1 for vertex 1 and the root
	degree []int

	// First and Second are the root's neighbours; a locked one is forced by
	// an Included edge.
	First, Second             int
	FirstLocked, SecondLocked bool

	feasible   bool
	weighted   float64 // cost on reduced costs
	unweighted int     // weighted − 2·Σπ, rounded

	adj [][]int // lazily built adjacency
}

// Feasible reports whether the constraints admitted a one-tree at all.
func (t *OneTree) Feasible() bool { return t.feasible }

// Unweighted returns the Lagrangian bound of this tree, or Infinity.
func (t *OneTree) Unweighted() int {
	if !t.feasible {
		return Infinity
	}

	return t.unweighted
}

// Degree returns the degree of v in the one-tree.
func (t *OneTree) Degree(v int) int { return t.degree[v] }

// IsTour reports whether every vertex has degree exactly 2.
func (t *OneTree) IsTour() bool {
	if !t.feasible {
		return false
	}
	for _, d := range t.degree {
		if d != 2 {
			return false
		}
	}

	return true
}

// Edges returns the N edges of the one-tree as {u,v} pairs, tree edges
// first in vertex order, then the two root edges.
func (t *OneTree) Edges() [][2]int {
	out := make([][2]int, 0, t.n)
	for v := 2; v < t.n; v++ {
		if t.parent[v] >= 0 {
			out = append(out, [2]int{t.parent[v], v})
		}
	}

	return append(out, [2]int{0, t.First}, [2]int{0, t.Second})
}

// RawCost sums the original edge costs of the one-tree.
func (t *OneTree) RawCost(g matrix.Graph) int {
	var sum int
	for _, e := range t.Edges() {
		sum += g.Cost(e[0], e[1])
	}

	return sum
}

// Neighbours returns the one-tree neighbours of v (shared slice; do not
// modify).
func (t *OneTree) Neighbours(v int) []int {
	if t.adj == nil {
		t.adj = make([][]int, t.n)
		for _, e := range t.Edges() {
			t.adj[e[0]] = append(t.adj[e[0]], e[1])
			t.adj[e[1]] = append(t.adj[e[1]], e[0])
		}
	}

	return t.adj[v]
}

// Tour walks a degree-2 one-tree from the root and returns the closed
// cycle 0, First, ..., Second, 0. It returns nil unless IsTour.
func (t *OneTree) Tour() []int {
	if !t.IsTour() {
		return nil
	}
	order := make([]int, 0, t.n+1)
	prev, cur := 0, t.First
	order = append(order, 0)
	for cur != 0 {
		order = append(order, cur)
		nb := t.Neighbours(cur)
		next := nb[0]
		if next == prev {
			next = nb[1]
		}
		prev, cur = cur, next
	}

	return append(order, 0)
}

// RootCycle returns the unique cycle of the one-tree as an open vertex
// sequence 0, First, ..., Second (the closing edge Second→0 is implied).
func (t *OneTree) RootCycle() []int {
	if !t.feasible {
		return nil
	}
	onPath := make(map[int]int) // ancestor of First -> index in up
	up := []int{}
	for v := t.First; v >= 0; v = t.parent[v] {
		onPath[v] = len(up)
		up = append(up, v)
	}
	down := []int{}
	v := t.Second
	for {
		if i, ok := onPath[v]; ok {
			up = up[:i+1]
			break
		}
		down = append(down, v)
		v = t.parent[v]
	}
	cycle := make([]int, 0, len(up)+len(down)+1)
	cycle = append(cycle, 0)
	cycle = append(cycle, up...)
	for i := len(down) - 1; i >= 0; i-- {
		cycle = append(cycle, down[i])
	}

	return cycle
}

// Chains returns the maximal paths of the one-tree made of edges whose
// endpoints both have degree at most 2. Each chain has at least two
// vertices; chains are vertex-disjoint. A one-tree that is a tour yields
// one chain covering every vertex.
func (t *OneTree) Chains() [][]int {
	if !t.feasible {
		return nil
	}
	usable := func(u, v int) bool { return t.degree[u] <= 2 && t.degree[v] <= 2 }
	ud := make([]int, t.n)
	for _, e := range t.Edges() {
		if usable(e[0], e[1]) {
			ud[e[0]]++
			ud[e[1]]++
		}
	}
	seen := make([]bool, t.n)
	walk := func(start int) []int {
		chain := []int{start}
		seen[start] = true
		prev, cur := -1, start
		for {
			next := -1
			for _, w := range t.Neighbours(cur) {
				if w != prev && !seen[w] && usable(cur, w) {
					next = w
					break
				}
			}
			if next < 0 {
				return chain
			}
			seen[next] = true
			chain = append(chain, next)
			prev, cur = cur, next
		}
	}

	var out [][]int
	for v := 0; v < t.n; v++ {
		if !seen[v] && ud[v] == 1 {
			out = append(out, walk(v))
		}
	}
	// Whatever remains with usable degree 2 lies on a cycle (the tour case).
	for v := 0; v < t.n; v++ {
		if !seen[v] && ud[v] == 2 {
			out = append(out, walk(v))
		}
	}

	return out
}

// cheapestFreeEdge returns the one-tree neighbour w of v minimizing
// cost(v,w), restricted to edges that are not already Included, whose far
// endpoint does not already carry two Included edges, and whose inclusion
// would not close a sub-cycle of Included edges. Ties go to the lower
// index. It returns -1 when no neighbour qualifies.
func (t *OneTree) cheapestFreeEdge(g matrix.Graph, idx *constraintIndex, v int) int {
	best, bestCost := -1, 0
	for _, w := range t.Neighbours(v) {
		if idx.isIncluded(v, w) || idx.timesIncluded[w] == 2 || idx.closesCycle(v, w) {
			continue
		}
		if c := g.Cost(v, w); best < 0 || c < bestCost || (c == bestCost && w < best) {
			best, bestCost = w, c
		}
	}

	return best
}

// CheapestFreeEdge is the exported form of the branching query: the
// cheapest one-tree edge {v,w} that c still allows to become Included
// without saturating w or closing a short cycle. It returns -1 if none.
func (t *OneTree) CheapestFreeEdge(g matrix.Graph, c Constraints, v int) (int, error) {
	idx, err := newConstraintIndex(c, t.n)
	if err != nil {
		return -1, err
	}

	return t.cheapestFreeEdge(g, idx, v), nil
}

// anyFreeEdge is cheapestFreeEdge without the endpoint filters: the
// cheapest one-tree edge at v that is not Included.
func (t *OneTree) anyFreeEdge(g matrix.Graph, idx *constraintIndex, v int) int {
	best, bestCost := -1, 0
	for _, w := range t.Neighbours(v) {
		if idx.isIncluded(v, w) {
			continue
		}
		if c := g.Cost(v, w); best < 0 || c < bestCost || (c == bestCost && w < best) {
			best, bestCost = w, c
		}
	}

	return best
}

// treeBuilder owns the working buffers of one subgradient run.
type treeBuilder struct {
	g      matrix.Graph
	n      int
	idx    *constraintIndex
	inTree []bool
	key    []float64
	parent []int
	stack  [][2]int
}

func newTreeBuilder(g matrix.Graph, idx *constraintIndex) *treeBuilder {
	n := g.Size()

	return &treeBuilder{
		g:      g,
		n:      n,
		idx:    idx,
		inTree: make([]bool, n),
		key:    make([]float64, n),
		parent: make([]int, n),
		stack:  make([][2]int, 0, 8),
	}
}

// reduced returns c'_{uv}; π_0 is always treated as zero.
func (b *treeBuilder) reduced(w []float64, u, v int) float64 {
	c := float64(b.g.Cost(u, v))
	if u != 0 {
		c += w[u]
	}
	if v != 0 {
		c += w[v]
	}

	return c
}

// build constructs a minimum constrained one-tree for multipliers w,
// writing degrees into the caller's cleared-on-entry degree vector.
func (b *treeBuilder) build(w []float64, degree []int) *OneTree {
	n := b.n
	t := &OneTree{n: n, degree: degree, First: -1, Second: -1}
	for v := range degree {
		degree[v] = 0
	}
	if b.idx.conflict {
		return t
	}

	var (
		inf   = math.Inf(1)
		v     int
		added int
	)
	for v = 0; v < n; v++ {
		b.inTree[v] = false
		b.key[v] = inf
		b.parent[v] = -1
	}

	// attach adds v through edge (p,v) and then every vertex forced to it
	// by an Included edge, relaxing keys as each vertex enters.
	attach := func(v, p int) {
		b.stack = append(b.stack[:0], [2]int{v, p})
		for len(b.stack) > 0 {
			top := b.stack[len(b.stack)-1]
			b.stack = b.stack[:len(b.stack)-1]
			x, px := top[0], top[1]
			if b.inTree[x] {
				continue
			}
			b.inTree[x] = true
			b.parent[x] = px
			added++
			if px >= 0 {
				degree[x]++
				degree[px]++
				t.weighted += b.reduced(w, px, x)
			}
			var y int
			for y = 1; y < n; y++ {
				if b.inTree[y] || b.idx.isExcluded(x, y) {
					continue
				}
				if c := b.reduced(w, x, y); c < b.key[y] {
					b.key[y] = c
					b.parent[y] = x
				}
			}
			for _, z := range b.idx.included[x] {
				if z != 0 && !b.inTree[z] {
					b.stack = append(b.stack, [2]int{z, x})
				}
			}
		}
	}

	attach(1, -1)
	for added < n-1 {
		best := -1
		for v = 1; v < n; v++ {
			if !b.inTree[v] && (best < 0 || b.key[v] < b.key[best]) {
				best = v
			}
		}
		if best < 0 || math.IsInf(b.key[best], 1) {
			return t // some vertex has no admissible edge left
		}
		attach(best, b.parent[best])
	}

	// A forced edge between two tree vertices that is not a tree edge means
	// the Included edges contain a cycle avoiding the root.
	for v = 1; v < n; v++ {
		for _, z := range b.idx.included[v] {
			if z != 0 && b.parent[v] != z && b.parent[z] != v {
				return t
			}
		}
	}
	t.parent = append([]int(nil), b.parent...)

	// Root edges: forced ones first (locked), then cheapest by reduced cost.
	forced := b.idx.included[0]
	if len(forced) > 2 {
		return t
	}
	if len(forced) > 0 {
		t.First, t.FirstLocked = forced[0], true
	}
	if len(forced) > 1 {
		t.Second, t.SecondLocked = forced[1], true
	}
	pick := func(skip int) int {
		best := -1
		var bestC float64
		for v := 1; v < n; v++ {
			if v == skip || b.idx.isExcluded(0, v) {
				continue
			}
			if c := b.reduced(w, 0, v); best < 0 || c < bestC {
				best, bestC = v, c
			}
		}
		return best
	}
	if t.First < 0 {
		t.First = pick(-1)
		if t.First < 0 {
			return t
		}
	}
	if t.Second < 0 {
		t.Second = pick(t.First)
		if t.Second < 0 {
			return t
		}
	}
	degree[0] += 2
	degree[t.First]++
	degree[t.Second]++
	t.weighted += b.reduced(w, 0, t.First) + b.reduced(w, 0, t.Second)

	var sumPi float64
	for v = 1; v < n; v++ {
		sumPi += w[v]
	}
	t.unweighted = int(math.Round(t.weighted - 2*sumPi))
	t.feasible = true

	return t
}

// BuildOneTree builds a single constrained one-tree for the given
// multipliers (len N; nil means all zero).
func BuildOneTree(g matrix.Graph, c Constraints, weights []float64) (*OneTree, error) {
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

	return newTreeBuilder(g, idx).build(weights, make([]int, n)), nil
}
