package matrix_test

import (
	"testing"

	"github.com/katalvlaran/tspgrid/codec"
	"github.com/katalvlaran/tspgrid/matrix"
	"github.com/stretchr/testify/require"
)

// ---------------------------
// Dense construction & access.
// ---------------------------

func TestDense_SetIsSymmetric(t *testing.T) {
	d, err := matrix.NewDense(3)
	require.NoError(t, err)
	require.NoError(t, d.Set(0, 2, 7))
	require.Equal(t, 7, d.Cost(0, 2))
	require.Equal(t, 7, d.Cost(2, 0))

	_, err = d.At(3, 0)
	require.ErrorIs(t, err, matrix.ErrOutOfRange)
	require.ErrorIs(t, d.Set(0, 1, -1), matrix.ErrNegativeCost)
}

func TestDense_BadShapes(t *testing.T) {
	_, err := matrix.NewDense(0)
	require.ErrorIs(t, err, matrix.ErrBadShape)

	_, err = matrix.NewDenseFromRows([][]int{{0, 1}, {1}})
	require.ErrorIs(t, err, matrix.ErrBadShape)
}

func TestMaterialize_DoesNotAlias(t *testing.T) {
	src, err := matrix.NewDenseFromRows([][]int{{0, 1, 2}, {1, 0, 3}, {2, 3, 0}})
	require.NoError(t, err)
	cp, err := matrix.Materialize(src)
	require.NoError(t, err)
	require.NoError(t, src.Set(0, 1, 9))
	require.Equal(t, 1, cp.Cost(0, 1))
}

// ---------------------------
// Validation.
// ---------------------------

func TestValidate_Sentinels(t *testing.T) {
	small, _ := matrix.NewDenseFromRows([][]int{{0, 1}, {1, 0}})
	require.ErrorIs(t, matrix.Validate(small), matrix.ErrTooSmall)

	diag, _ := matrix.NewDenseFromRows([][]int{{1, 1, 1}, {1, 0, 1}, {1, 1, 0}})
	require.ErrorIs(t, matrix.Validate(diag), matrix.ErrNonZeroDiagonal)

	neg, _ := matrix.NewDenseFromRows([][]int{{0, -1, 1}, {-1, 0, 1}, {1, 1, 0}})
	require.ErrorIs(t, matrix.Validate(neg), matrix.ErrNegativeCost)

	asym, _ := matrix.NewDenseFromRows([][]int{{0, 1, 1}, {2, 0, 1}, {1, 1, 0}})
	require.ErrorIs(t, matrix.Validate(asym), matrix.ErrAsymmetric)

	require.ErrorIs(t, matrix.Validate(nil), matrix.ErrNilGraph)
}

// ---------------------------
// Geometry builders.
// ---------------------------

func TestEuclidean_RoundsAndMagnifies(t *testing.T) {
	pts := []matrix.Point{{X: 0, Y: 0}, {X: 3, Y: 4}, {X: 1, Y: 1}}
	d, err := matrix.Euclidean(pts, 1)
	require.NoError(t, err)
	require.Equal(t, 5, d.Cost(0, 1))
	require.Equal(t, 1, d.Cost(0, 2)) // √2 rounds to 1
	require.NoError(t, matrix.Validate(d))

	d10, err := matrix.Euclidean(pts, 10)
	require.NoError(t, err)
	require.Equal(t, 50, d10.Cost(0, 1))
	require.Equal(t, 14, d10.Cost(0, 2)) // 14.142… rounds to 14
}

func TestGeo_ZeroDiagonalAndSymmetric(t *testing.T) {
	// Three points of the ulysses/burma family, DDD.MM notation.
	pts := []matrix.Point{{X: 16.47, Y: 96.10}, {X: 16.47, Y: 94.44}, {X: 20.09, Y: 92.54}}
	d, err := matrix.Geo(pts)
	require.NoError(t, err)
	require.NoError(t, matrix.Validate(d))
	require.Greater(t, d.Cost(0, 1), 100)
	require.Less(t, d.Cost(0, 1), 250)
}

func TestGeo_IdenticalPointsCostOne(t *testing.T) {
	pts := []matrix.Point{{X: 10.30, Y: 20.15}, {X: 10.30, Y: 20.15}, {X: 11, Y: 21}}
	d, err := matrix.Geo(pts)
	require.NoError(t, err)
	require.Equal(t, 0, d.Cost(0, 0))
	require.Equal(t, 1, d.Cost(0, 1)) // truncation + 1 on a zero arc
}

// ---------------------------
// Random generators, digest and wire form.
// ---------------------------

func TestRandom_Deterministic(t *testing.T) {
	a, err := matrix.Random(12, 100, 7)
	require.NoError(t, err)
	b, err := matrix.Random(12, 100, 7)
	require.NoError(t, err)
	require.Equal(t, matrix.Digest(a), matrix.Digest(b))
	require.NoError(t, matrix.Validate(a))

	c, err := matrix.Random(12, 100, 8)
	require.NoError(t, err)
	require.NotEqual(t, matrix.Digest(a), matrix.Digest(c))
}

func TestRandomEuclidean_Valid(t *testing.T) {
	d, pts, err := matrix.RandomEuclidean(20, 1000, 0)
	require.NoError(t, err)
	require.Len(t, pts, 20)
	require.NoError(t, matrix.Validate(d))
}

func TestDense_CBORWireForm(t *testing.T) {
	src, err := matrix.Random(9, 50, 3)
	require.NoError(t, err)

	blob, err := codec.Marshal(src)
	require.NoError(t, err)
	var got matrix.Dense
	require.NoError(t, codec.Unmarshal(blob, &got))
	require.Equal(t, matrix.Digest(src), matrix.Digest(&got))

	bad, err := codec.Marshal(map[string]any{"n": 3, "d": []int{1, 2}})
	require.NoError(t, err)
	require.ErrorIs(t, codec.Unmarshal(bad, &got), matrix.ErrCorruptWire)
}
