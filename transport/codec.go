package transport

import (
	"google.golang.org/grpc/encoding"

	"github.com/katalvlaran/tspgrid/codec"
)

// CodecName is the gRPC content-subtype of the dispatch service.
const CodecName = "cbor"

// cborCodec adapts the module codec to grpc/encoding.
type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error)      { return codec.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return codec.Unmarshal(data, v) }
func (cborCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(cborCodec{})
}
