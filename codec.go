package memoize

import "github.com/vmihailenco/msgpack/v5"

// Codec serializes cached return values. The default is msgpack; any
// general-purpose binary serializer that round-trips the wrapped function's
// result types can be substituted via WithCodec.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackCodec is the default Codec.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

func (MsgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
