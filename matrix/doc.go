// Package matrix provides the integer cost provider consumed by the solver.
//
// The package offers:
//
//   - Graph, the read-only view every algorithm consumes: Size() and a
//     symmetric, non-negative Cost(i, j).
//   - Dense, a row-major n×n integer matrix with O(1) lookups, O(n²)
//     memory and a compact CBOR wire form so it can be shipped to workers.
//   - Builders for TSPLIB geometry (EUC_2D, GEO) and deterministic random
//     instances.
//   - Validate and Digest: structural checks and a content hash that
//     identifies an instance across processes.
//
// Matrices are meant for dense complete graphs where O(n²) memory is
// acceptable; every TSP algorithm in this module runs in Ω(n²) anyway.
package matrix
