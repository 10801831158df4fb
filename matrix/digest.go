package matrix

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Digest returns the hex-encoded blake3 hash of the instance: the order
// followed by the upper triangle in row-major order. Two processes holding
// the same costs compute the same digest, so it serves as the graph handle
// a session is bound to.
//
// Complexity: O(n²).
func Digest(g Graph) string {
	var (
		h   = blake3.New()
		buf [8]byte
		n   = g.Size()
		i   int
		j   int
	)
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, _ = h.Write(buf[:])
	for i = 0; i < n; i++ {
		for j = i + 1; j < n; j++ {
			binary.LittleEndian.PutUint64(buf[:], uint64(g.Cost(i, j)))
			_, _ = h.Write(buf[:])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
