// Package matching computes exact minimum-weight perfect matchings on
// complete graphs.
//
// The solver is the primal-dual weighted blossom algorithm of Edmonds with
// Galil's O(n³) bookkeeping: S/T labelling of alternating trees, blossom
// shrinking and expansion, and four dual-adjustment cases. A minimum-weight
// perfect matching is obtained as a maximum-weight maximum-cardinality
// matching on the transformed weights W − w(i,j), where W exceeds every
// input weight.
//
// All arithmetic is on int64: with integer weights every dual variable
// stays integral because edge slacks are computed against doubled weights.
//
// Complexity: O(n³) time, O(n²) memory for K_n.
package matching
