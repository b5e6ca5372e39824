package connectutil

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// JSONCodec serializes plain Go structs with encoding/json. It registers
// under the "json" name, replacing connect's protobuf-only JSON codec, so
// services can be declared without generated protobuf types.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json codec: marshal %T: %w", msg, err)
	}
	return b, nil
}

func (JSONCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("json codec: unmarshal %T: %w", msg, err)
	}
	return nil
}
