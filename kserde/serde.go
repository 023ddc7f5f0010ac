// Package kserde converts block payloads to bytes for the exchange and store
// adapters. A Serde handles one payload type; BlockCodec wraps it into a
// kblock.Codec that also carries the row count and meta entries.
package kserde

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/birdayz/kpipe/kblock"
)

type Serde[T any] struct {
	Serializer   Serializer[T]
	Deserializer Deserializer[T]
}

type Serializer[T any] func(T) ([]byte, error)

type Deserializer[T any] func([]byte) (T, error)

// ErrPayloadType is returned when encoding a block whose payload is not of
// the codec's type.
var ErrPayloadType = errors.New("kserde: unexpected payload type")

// ErrMalformed is returned when decoding bytes that are not a block envelope.
var ErrMalformed = errors.New("kserde: malformed block")

const (
	fieldRows    protowire.Number = 1
	fieldMeta    protowire.Number = 2
	fieldPayload protowire.Number = 3

	fieldMetaKey   protowire.Number = 1
	fieldMetaValue protowire.Number = 2
)

type blockCodec[T any] struct {
	serde Serde[T]
}

// BlockCodec returns a codec for blocks whose payload is a T. The envelope
// uses the protobuf wire format: rows (1), meta entries (2) sorted by key,
// payload (3).
func BlockCodec[T any](serde Serde[T]) kblock.Codec {
	return blockCodec[T]{serde: serde}
}

func (c blockCodec[T]) Encode(block *kblock.DataBlock) ([]byte, error) {
	payload, ok := block.Payload().(T)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrPayloadType, block.Payload())
	}
	data, err := c.serde.Serializer(payload)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldRows, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(block.NumRows()))
	for _, k := range slices.Sorted(maps.Keys(block.Meta)) {
		v := block.Meta[k]
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMetaKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldMetaValue, protowire.BytesType)
		entry = protowire.AppendString(entry, v)

		b = protowire.AppendTag(b, fieldMeta, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, data)
	return b, nil
}

func (c blockCodec[T]) Decode(b []byte) (*kblock.DataBlock, error) {
	var (
		rows    uint64
		meta    map[string]string
		payload []byte
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldRows && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: rows: %v", ErrMalformed, protowire.ParseError(n))
			}
			rows = v
			b = b[n:]
		case num == fieldMeta && typ == protowire.BytesType:
			entry, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: meta: %v", ErrMalformed, protowire.ParseError(n))
			}
			k, v, err := decodeMetaEntry(entry)
			if err != nil {
				return nil, err
			}
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[k] = v
			b = b[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, protowire.ParseError(n))
			}
			payload = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	value, err := c.serde.Deserializer(payload)
	if err != nil {
		return nil, err
	}
	block := kblock.New(value, int(rows))
	block.Meta = meta
	return block, nil
}

func decodeMetaEntry(b []byte) (key, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 || typ != protowire.BytesType {
			return "", "", fmt.Errorf("%w: meta entry", ErrMalformed)
		}
		b = b[n:]
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return "", "", fmt.Errorf("%w: meta entry: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldMetaKey:
			key = v
		case fieldMetaValue:
			value = v
		}
	}
	return key, value, nil
}
