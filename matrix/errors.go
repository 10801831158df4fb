// Package matrix: sentinel error set.
// Every message is prefixed with "matrix: ..." so that log lines can be
// grepped by package. Callers match with errors.Is; call sites that need
// context wrap with fmt.Errorf("ctx: %w", ErrX).

package matrix

import "errors"

var (
	// ErrBadShape is returned when a requested order is invalid (n<=0) or a
	// row slice does not have the expected length.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrOutOfRange indicates that an index is outside [0, n).
	// Public indexers MUST return this, not panic.
	ErrOutOfRange = errors.New("matrix: index out of range")

	// ErrTooSmall signals an instance with fewer than three cities; no
	// Hamiltonian cycle (and no one-tree) is defined below that size.
	ErrTooSmall = errors.New("matrix: fewer than 3 vertices")

	// ErrAsymmetric signals that cost(i,j) != cost(j,i) for some pair.
	ErrAsymmetric = errors.New("matrix: cost matrix is not symmetric")

	// ErrNonZeroDiagonal signals a non-zero cost(i,i).
	ErrNonZeroDiagonal = errors.New("matrix: diagonal not zero")

	// ErrNegativeCost signals a negative cost entry.
	ErrNegativeCost = errors.New("matrix: negative cost")

	// ErrNilGraph indicates that a nil Graph was passed in.
	ErrNilGraph = errors.New("matrix: graph is nil")

	// ErrCorruptWire is returned when a CBOR wire form does not decode into
	// a consistent n×n matrix.
	ErrCorruptWire = errors.New("matrix: corrupt wire form")
)
