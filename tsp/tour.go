// Package tsp — tour representation and invariants.
//
// A tour is a closed vertex sequence of length n+1 that starts and ends at
// vertex 0 and visits every vertex in [0,n) exactly once in between.
package tsp

import (
	"fmt"

	"github.com/katalvlaran/tspgrid/matrix"
)

// Tour is a Hamiltonian cycle with its cost.
type Tour struct {
	Order []int `cbor:"o" json:"order"`
	Cost  int   `cbor:"c" json:"cost"`
}

// Clone returns a deep copy (nil-safe).
func (t *Tour) Clone() *Tour {
	if t == nil {
		return nil
	}

	return &Tour{Order: append([]int(nil), t.Order...), Cost: t.Cost}
}

// ValidateTour enforces the closed-cycle invariants:
//
//	len(tour) == n+1, tour[0] == tour[n] == 0,
//	each vertex v ∈ [0..n-1] appears exactly once in positions [0..n-1].
//
// Complexity: O(n) time, O(n) space.
func ValidateTour(tour []int, n int) error {
	if n <= 0 || len(tour) != n+1 {
		return fmt.Errorf("length %d for %d vertices: %w", len(tour), n, ErrInvalidTour)
	}
	if tour[0] != 0 || tour[n] != 0 {
		return fmt.Errorf("tour must start and end at 0: %w", ErrInvalidTour)
	}
	seen := make([]bool, n)
	var (
		i, v int
	)
	for i = 0; i < n; i++ {
		v = tour[i]
		if v < 0 || v >= n || seen[v] {
			return fmt.Errorf("vertex %d at position %d: %w", v, i, ErrInvalidTour)
		}
		seen[v] = true
	}

	return nil
}

// TourCost sums g over the consecutive pairs of a closed tour.
func TourCost(g matrix.Graph, tour []int) (int, error) {
	if err := ValidateTour(tour, g.Size()); err != nil {
		return 0, err
	}

	return cycleCost(g, tour), nil
}

// cycleCost sums consecutive edges of a closed sequence without checks.
func cycleCost(g matrix.Graph, tour []int) int {
	var sum int
	for i := 0; i+1 < len(tour); i++ {
		sum += g.Cost(tour[i], tour[i+1])
	}

	return sum
}

// CanonicalTour fixes the orientation of a closed tour so that
// tour[1] < tour[n-1]; equal cycles then compare equal element-wise.
// The input is not modified.
func CanonicalTour(tour []int) []int {
	out := append([]int(nil), tour...)
	n := len(out) - 1
	if n >= 3 && out[1] > out[n-1] {
		for i, j := 1, n-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	return out
}

// closeCycle turns an open Hamiltonian path or cycle sequence of length n
// into a closed tour starting at 0.
func closeCycle(seq []int) []int {
	n := len(seq)
	p := 0
	for i, v := range seq {
		if v == 0 {
			p = i
			break
		}
	}
	out := make([]int, n+1)
	for i := 0; i < n; i++ {
		out[i] = seq[(p+i)%n]
	}
	out[n] = out[0]

	return out
}

// shortcut keeps the first occurrence of every vertex of an Eulerian walk
// and closes the result at 0.
func shortcut(euler []int, n int) ([]int, error) {
	visited := make([]bool, n)
	cycle := make([]int, 0, n)
	for _, v := range euler {
		if v < 0 || v >= n {
			return nil, fmt.Errorf("walk vertex %d: %w", v, ErrInvalidTour)
		}
		if !visited[v] {
			visited[v] = true
			cycle = append(cycle, v)
		}
	}
	if len(cycle) != n {
		return nil, fmt.Errorf("walk covers %d of %d vertices: %w", len(cycle), n, ErrInvalidTour)
	}

	return closeCycle(cycle), nil
}

// eulerianCircuit is Hierholzer's algorithm on an undirected multigraph
// given as adjacency lists. It consumes a local copy of adj.
func eulerianCircuit(adj [][]int, start int) []int {
	local := make([][]int, len(adj))
	for u := range adj {
		local[u] = append([]int(nil), adj[u]...)
	}

	var circuit []int
	stack := []int{start}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		if len(local[u]) == 0 {
			circuit = append(circuit, u)
			stack = stack[:len(stack)-1]
			continue
		}
		v := local[u][len(local[u])-1]
		local[u] = local[u][:len(local[u])-1]
		for i, x := range local[v] {
			if x == u {
				local[v] = append(local[v][:i], local[v][i+1:]...)
				break
			}
		}
		stack = append(stack, v)
	}

	return circuit
}
