package codec

import (
	"encoding/json"
)

// JSONCodec writes envelopes exactly as the daemon's HTTP endpoint would
// receive them, which makes captured frames easy to read.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
