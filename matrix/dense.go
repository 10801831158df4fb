package matrix

import (
	"fmt"

	"github.com/katalvlaran/tspgrid/codec"
)

// Graph is the cost provider consumed by every solver component.
// Implementations must be immutable for the lifetime of a solve and return
// a symmetric, non-negative cost for indices in [0, Size()).
type Graph interface {
	// Size returns the number of vertices N.
	Size() int
	// Cost returns the integer cost of edge {i,j}.
	Cost(i, j int) int
}

// denseErrorf wraps an underlying error with Dense method context.
func denseErrorf(method string, row, col int, err error) error {
	return fmt.Errorf("Dense.%s(%d,%d): %w", method, row, col, err)
}

// Dense is a row-major n×n matrix of integer costs.
// n is the order and data holds n*n elements in row-major order.
type Dense struct {
	n    int   // order of the matrix
	data []int // flat backing storage, length == n*n
}

// NewDense creates an n×n Dense cost matrix initialized to zeros.
// Complexity: O(n²) time and memory.
func NewDense(n int) (*Dense, error) {
	if n <= 0 {
		return nil, ErrBadShape
	}

	return &Dense{n: n, data: make([]int, n*n)}, nil
}

// NewDenseFromRows copies a square [][]int into a new Dense.
// Every row must have len(rows) entries; no symmetry is enforced here
// (see Validate).
func NewDenseFromRows(rows [][]int) (*Dense, error) {
	n := len(rows)
	d, err := NewDense(n)
	if err != nil {
		return nil, err
	}
	var i int
	for i = 0; i < n; i++ {
		if len(rows[i]) != n {
			return nil, fmt.Errorf("row %d has %d entries, want %d: %w", i, len(rows[i]), n, ErrBadShape)
		}
		copy(d.data[i*n:(i+1)*n], rows[i])
	}

	return d, nil
}

// Materialize copies any Graph into a Dense. A *Dense input is cloned so
// the result never aliases the caller's storage.
// Complexity: O(n²).
func Materialize(g Graph) (*Dense, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	n := g.Size()
	d, err := NewDense(n)
	if err != nil {
		return nil, err
	}
	if src, ok := g.(*Dense); ok {
		copy(d.data, src.data)
		return d, nil
	}
	var i, j int
	for i = 0; i < n; i++ {
		for j = 0; j < n; j++ {
			d.data[i*n+j] = g.Cost(i, j)
		}
	}

	return d, nil
}

// Size returns the order of the matrix.
func (m *Dense) Size() int { return m.n }

// Cost returns the entry at (i, j). Indices are trusted: hot loops call it
// n² times per one-tree, so range checks live in At.
func (m *Dense) Cost(i, j int) int { return m.data[i*m.n+j] }

// At returns the entry at (i, j) or ErrOutOfRange.
func (m *Dense) At(i, j int) (int, error) {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		return 0, denseErrorf("At", i, j, ErrOutOfRange)
	}

	return m.data[i*m.n+j], nil
}

// Set writes c at (i, j) and (j, i), keeping the matrix symmetric.
func (m *Dense) Set(i, j, c int) error {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		return denseErrorf("Set", i, j, ErrOutOfRange)
	}
	if c < 0 {
		return denseErrorf("Set", i, j, ErrNegativeCost)
	}
	m.data[i*m.n+j] = c
	m.data[j*m.n+i] = c

	return nil
}

// denseWire is the CBOR wire form of a Dense.
type denseWire struct {
	N    int   `cbor:"n"`
	Data []int `cbor:"d"`
}

// MarshalCBOR implements cbor.Marshaler so a Dense can travel inside
// login commands.
func (m *Dense) MarshalCBOR() ([]byte, error) {
	return codec.Marshal(denseWire{N: m.n, Data: m.data})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (m *Dense) UnmarshalCBOR(b []byte) error {
	var w denseWire
	if err := codec.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.N <= 0 || len(w.Data) != w.N*w.N {
		return ErrCorruptWire
	}
	m.n, m.data = w.N, w.Data

	return nil
}
