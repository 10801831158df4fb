package codec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Blob framing: one leading byte tells how the remainder is stored.
const (
	blobRaw  byte = 0
	blobZstd byte = 1
)

// PackThreshold is the encoded size above which Pack tries zstd.
// Small nodes near the root are cheaper to ship raw.
const PackThreshold = 4096

// ErrBadBlob is returned by Unpack for an empty or unknown frame.
var ErrBadBlob = errors.New("codec: malformed blob")

// zstdEncoder and zstdDecoder are safe for concurrent use and reused
// across calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack encodes v to CBOR and frames it, compressing with zstd when the
// encoding exceeds PackThreshold and compression actually helps.
func Pack(v any) ([]byte, error) {
	raw, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(raw) > PackThreshold {
		compressed := zstdEncoder.EncodeAll(raw, []byte{blobZstd})
		if len(compressed) < len(raw)+1 {
			return compressed, nil
		}
	}
	out := make([]byte, 0, len(raw)+1)
	out = append(out, blobRaw)

	return append(out, raw...), nil
}

// Unpack reverses Pack into v.
func Unpack(blob []byte, v any) error {
	if len(blob) == 0 {
		return ErrBadBlob
	}
	switch blob[0] {
	case blobRaw:
		return Unmarshal(blob[1:], v)
	case blobZstd:
		raw, err := zstdDecoder.DecodeAll(blob[1:], nil)
		if err != nil {
			return fmt.Errorf("zstd decompress: %w", err)
		}
		return Unmarshal(raw, v)
	default:
		return fmt.Errorf("frame tag %d: %w", blob[0], ErrBadBlob)
	}
}
