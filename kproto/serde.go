// Package kproto encodes protobuf block payloads.
package kproto

import (
	"google.golang.org/protobuf/proto"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kserde"
)

var (
	marshal   = proto.MarshalOptions{Deterministic: true}
	unmarshal = proto.UnmarshalOptions{DiscardUnknown: true}
)

// Serde encodes messages deterministically, so equal blocks produce equal
// bytes. Decoding allocates a fresh T through protoreflect and drops unknown
// fields written by newer producers.
//
//	codec := kserde.BlockCodec(kproto.Serde[*pb.Batch]())
func Serde[T proto.Message]() kserde.Serde[T] {
	return SerdeWith(func() T {
		var zero T
		return zero.ProtoReflect().New().Interface().(T)
	})
}

// SerdeWith is Serde with an explicit allocator.
func SerdeWith[T proto.Message](newFn func() T) kserde.Serde[T] {
	return kserde.Serde[T]{
		Serializer: func(v T) ([]byte, error) {
			return marshal.Marshal(v)
		},
		Deserializer: func(data []byte) (T, error) {
			msg := newFn()
			if err := unmarshal.Unmarshal(data, msg); err != nil {
				var zero T
				return zero, err
			}
			return msg, nil
		},
	}
}

// Codec returns a block codec for blocks carrying a T payload.
func Codec[T proto.Message]() kblock.Codec {
	return kserde.BlockCodec(Serde[T]())
}
