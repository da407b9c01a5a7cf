// Package serialization encodes cache entries for the persistent store.
package serialization

import (
	"bytes"
	"fmt"
	"io"
)

const (
	// JSONType encodes entries as JSON.
	JSONType = "json"

	// GobType encodes entries with encoding/gob.
	GobType = "gob"
)

// Decoder reads one value from a stream.
type Decoder interface {
	Decode(v any) error
}

// Encoder writes one value to a stream.
type Encoder interface {
	Encode(v any) error
}

// Codec pairs the encoder and decoder constructors of one format.
type Codec struct {
	Type    string
	Encoder func(io.Writer) Encoder
	Decoder func(io.Reader) Decoder
}

// New returns the codec registered for typ.
func New(typ string) (Codec, error) {
	switch typ {
	case JSONType, "":
		return Codec{Type: JSONType, Encoder: JSONEncoder, Decoder: JSONDecoder}, nil
	case GobType:
		return Codec{Type: GobType, Encoder: GobEncoder, Decoder: GobDecoder}, nil
	default:
		return Codec{}, fmt.Errorf("unsupported serialization type: %s", typ)
	}
}

// Marshal encodes v into a byte slice.
func (c Codec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%s encode: %w", c.Type, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v.
func (c Codec) Unmarshal(data []byte, v any) error {
	if err := c.Decoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%s decode: %w", c.Type, err)
	}
	return nil
}
