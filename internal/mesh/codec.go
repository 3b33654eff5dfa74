package mesh

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// codecName is the content subtype the mesh uses for JSON payloads.
const codecName = "json"

// jsonCodec encodes call payloads as JSON. Protobuf messages pass
// through with their native encoding so health and reflection RPCs
// stay wire compatible.
type jsonCodec struct{}

// Marshal returns the encoded bytes for v.
func (c *jsonCodec) Marshal(v interface{}) ([]byte, error) {
	// Protobuf messages keep their binary encoding
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal %T: %w", v, err)
	}
	return data, nil
}

// Unmarshal decodes data into v.
func (c *jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if msg, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, msg)
	}

	// An empty body decodes to the zero value
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json codec: unmarshal into %T: %w", v, err)
	}
	return nil
}

// Name returns the codec name.
func (c *jsonCodec) Name() string {
	return codecName
}

// String returns the codec name.
func (c *jsonCodec) String() string {
	return codecName
}

// init registers the JSON codec with gRPC so servers in the same
// process can decode mesh calls.
func init() {
	encoding.RegisterCodec(&jsonCodec{})
}
