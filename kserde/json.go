package kserde

import (
	"encoding/json"

	"github.com/birdayz/kpipe/kblock"
)

// JSON encodes T with encoding/json.
func JSON[T any]() Serde[T] {
	return Serde[T]{
		Serializer: func(v T) ([]byte, error) {
			return json.Marshal(v)
		},
		Deserializer: func(data []byte) (T, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				var zero T
				return zero, err
			}
			return v, nil
		},
	}
}

// JSONCodec is shorthand for BlockCodec(JSON[T]()).
func JSONCodec[T any]() kblock.Codec {
	return BlockCodec(JSON[T]())
}
