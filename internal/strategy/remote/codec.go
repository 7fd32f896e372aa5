// Package remote lets a Strategy run out-of-process, bridged over gRPC
// (spec.md §4.D "a strategy may optionally be hosted by a separate worker
// process and driven over RPC"). Grounded on the teacher's
// internal/strategy/grpc_client.go/python_bridge.go, which both depend on
// protoc-generated trading-core/proto stubs that cannot be regenerated here.
// Rather than hand-author fake .pb.go output, this package uses grpc-go's
// lower-level, genuinely hand-writable surface directly: a manual
// grpc.ServiceDesc plus a JSON encoding.Codec registered through
// encoding.RegisterCodec, so no protoc step is ever required to build or use
// it.
package remote

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// codecName is negotiated over the wire via the grpc content-subtype
// ("application/grpc+json"); grpc-go picks this Codec whenever a call sets
// CallContentSubtype(codecName).
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
