package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes an arbitrary native value to an opaque byte payload and
// back. It is the escape hatch for injecting values too complex for the plain
// container conversion, and must round-trip every value kind the evaluation
// context can hold: primitives, sequences, and string-keyed mappings.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// MsgpackCodec is the production Codec.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding object blob: %w", err)
	}
	return b, nil
}

func (MsgpackCodec) Decode(b []byte) (any, error) {
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decoding object blob: %w", err)
	}
	return v, nil
}
