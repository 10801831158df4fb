package tsp

import "sync/atomic"

// UpperBound is the best tour cost known to a solve. It only ever
// decreases; readers may observe a stale value, which costs pruning
// opportunities but never correctness.
type UpperBound struct {
	v atomic.Int64
}

// NewUpperBound returns a bound starting at initial (Infinity for none).
func NewUpperBound(initial int) *UpperBound {
	ub := &UpperBound{}
	ub.v.Store(int64(initial))

	return ub
}

// Value returns the current bound.
func (u *UpperBound) Value() int { return int(u.v.Load()) }

// Lower sets the bound to v iff v is strictly smaller than the current
// value and reports whether it did.
func (u *UpperBound) Lower(v int) bool {
	for {
		cur := u.v.Load()
		if int64(v) >= cur {
			return false
		}
		if u.v.CompareAndSwap(cur, int64(v)) {
			return true
		}
	}
}
