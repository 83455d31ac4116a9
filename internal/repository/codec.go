package repository

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

const (
	CodecJSON = "json"
	CodecCBOR = "cbor"
)

// Codec serializes a whole collection into one blob
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// NewCodec returns the codec registered under name
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return jsonCodec{}, nil
	case CodecCBOR:
		// timestamps stay ISO-8601 text in both encodings
		em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
		if err != nil {
			return nil, err
		}
		return cborCodec{em: em}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return CodecJSON }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	em cbor.EncMode
}

func (c cborCodec) Name() string                       { return CodecCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.em.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
