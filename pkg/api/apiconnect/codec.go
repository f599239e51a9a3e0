// Package apiconnect wires the kixikila.v1 services to connectrpc.com/connect.
package apiconnect

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// codecName matches the "json" sub-type of application/json and application/connect+json.
const codecName = "json"

// jsonCodec marshals plain Go messages with encoding/json.
type jsonCodec struct{}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("unmarshal %T: %w", msg, err)
	}
	return nil
}

// WithJSON is the codec option every handler and client is built with.
func WithJSON() connect.Option {
	return connect.WithCodec(jsonCodec{})
}
