// Package actor implements the distributed worker transport: a gRPC service
// where each actor owns one Model, plus the host-side client. The service
// has two fixed frame types, so instead of generated protobuf stubs it uses
// a hand-rolled ServiceDesc with a registered JSON codec, selected per call
// via the content-subtype.
package actor

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content-subtype carrying JSON frames.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return CodecName }
