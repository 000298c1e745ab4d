package repository

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec names accepted by CodecByName and RedisConfig.Codec.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
	CodecCBOR    = "cbor"
)

// Codec encodes and decodes values of V for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

type JSONCodec[V any] struct{}

func (JSONCodec[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}

type MsgpackCodec[V any] struct{}

func (MsgpackCodec[V]) Encode(v V) ([]byte, error) { return msgpack.Marshal(v) }

func (MsgpackCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}

// CBORCodec uses deterministic core encoding with RFC 3339 timestamps.
type CBORCodec[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func NewCBORCodec[V any]() (*CBORCodec[V], error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	enc, err := eo.EncMode()
	if err != nil {
		return nil, err
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		return nil, err
	}
	return &CBORCodec[V]{enc: enc, dec: dec}, nil
}

func (c *CBORCodec[V]) Encode(v V) ([]byte, error) { return c.enc.Marshal(v) }

func (c *CBORCodec[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

// LimitCodec rejects payloads larger than MaxDecode before decoding.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload of %d bytes exceeds limit %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}

// CodecByName returns the codec for name. An empty name selects JSON.
func CodecByName[V any](name string) (Codec[V], error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec[V]{}, nil
	case CodecMsgpack:
		return MsgpackCodec[V]{}, nil
	case CodecCBOR:
		return NewCBORCodec[V]()
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
