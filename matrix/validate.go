package matrix

import "fmt"

// Validate checks the structural contract every solver relies on:
// N ≥ 3, zero diagonal, non-negative and symmetric costs.
// The first violation found in row-major order is reported.
//
// Complexity: O(n²).
func Validate(g Graph) error {
	if g == nil {
		return ErrNilGraph
	}
	n := g.Size()
	if n < 3 {
		return fmt.Errorf("size %d: %w", n, ErrTooSmall)
	}

	var (
		i, j int
		c    int
	)
	for i = 0; i < n; i++ {
		if c = g.Cost(i, i); c != 0 {
			return fmt.Errorf("cost(%d,%d)=%d: %w", i, i, c, ErrNonZeroDiagonal)
		}
		for j = i + 1; j < n; j++ {
			c = g.Cost(i, j)
			if c < 0 {
				return fmt.Errorf("cost(%d,%d)=%d: %w", i, j, c, ErrNegativeCost)
			}
			if c != g.Cost(j, i) {
				return fmt.Errorf("cost(%d,%d)=%d cost(%d,%d)=%d: %w", i, j, c, j, i, g.Cost(j, i), ErrAsymmetric)
			}
		}
	}

	return nil
}
