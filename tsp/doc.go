// Package tsp implements the per-node machinery of a branch-and-bound
// solver for the symmetric Travelling Salesman Problem.
//
//   - Constraints: forced-included / forced-excluded edges of a subproblem.
//   - BuildOneTree: Prim's MST over {1..N-1} plus two root edges, honouring
//     the constraints; the Held–Karp relaxation of a tour.
//   - HeldKarp: subgradient ascent on per-vertex multipliers, returning a
//     monotone lower bound and, when the one-tree is a cycle, a tour.
//   - MatchingTour, InsertionTour, Christofides, TwoOpt: tour heuristics
//     that tighten the global upper bound.
//   - Node / Evaluator: a transmissible subproblem and the operations run
//     on it (lower bound, upper bound, branching, subtree exploration).
//   - UpperBound: the one scalar shared across all nodes.
//
// Costs are integers (matrix.Graph); multipliers are float64. Bounds are
// rounded to the nearest integer, which stays admissible because every
// tour cost is integral.
//
// Determinism: no RNG is used anywhere. Prim, root-edge selection and the
// branching scan break ties by vertex index, so the same node always
// produces the same bound, tour and children.
package tsp
