package codec_test

import (
	"bytes"
	"testing"

	"github.com/katalvlaran/tspgrid/codec"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string    `cbor:"name"`
	Weights []float64 `cbor:"weights"`
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := codec.Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := codec.Marshal(v)
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, again))
	}
}

func TestPack_SmallStaysRaw(t *testing.T) {
	blob, err := codec.Pack(sample{Name: "root", Weights: []float64{1, 2}})
	require.NoError(t, err)
	require.Equal(t, byte(0), blob[0])

	var got sample
	require.NoError(t, codec.Unpack(blob, &got))
	require.Equal(t, "root", got.Name)
}

func TestPack_LargeCompresses(t *testing.T) {
	in := sample{Name: "deep", Weights: make([]float64, 4000)}
	blob, err := codec.Pack(in)
	require.NoError(t, err)
	require.Equal(t, byte(1), blob[0])

	raw, err := codec.Marshal(in)
	require.NoError(t, err)
	require.Less(t, len(blob), len(raw))

	var got sample
	require.NoError(t, codec.Unpack(blob, &got))
	require.Len(t, got.Weights, 4000)
}

func TestUnpack_BadFrames(t *testing.T) {
	var v sample
	require.ErrorIs(t, codec.Unpack(nil, &v), codec.ErrBadBlob)
	require.ErrorIs(t, codec.Unpack([]byte{9, 1, 2}, &v), codec.ErrBadBlob)
}
