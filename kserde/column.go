package kserde

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float64Column serializes a float64 column as packed big-endian values.
var Float64Column = Serde[[]float64]{
	Serializer: func(data []float64) ([]byte, error) {
		res := make([]byte, 8*len(data))
		for i, v := range data {
			binary.BigEndian.PutUint64(res[8*i:], math.Float64bits(v))
		}
		return res, nil
	},
	Deserializer: func(data []byte) ([]float64, error) {
		if len(data)%8 != 0 {
			return nil, fmt.Errorf("float64 column requires a multiple of 8 bytes, got %d", len(data))
		}
		out := make([]float64, len(data)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(data[8*i:]))
		}
		return out, nil
	},
}

// Int64Column serializes an int64 column as packed big-endian values.
var Int64Column = Serde[[]int64]{
	Serializer: func(data []int64) ([]byte, error) {
		res := make([]byte, 8*len(data))
		for i, v := range data {
			binary.BigEndian.PutUint64(res[8*i:], uint64(v))
		}
		return res, nil
	},
	Deserializer: func(data []byte) ([]int64, error) {
		if len(data)%8 != 0 {
			return nil, fmt.Errorf("int64 column requires a multiple of 8 bytes, got %d", len(data))
		}
		out := make([]int64, len(data)/8)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(data[8*i:]))
		}
		return out, nil
	},
}
