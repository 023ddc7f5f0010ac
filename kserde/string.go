package kserde

var StringDeserializer = func(data []byte) (string, error) {
	return string(data), nil
}

var StringSerializer = func(data string) ([]byte, error) {
	return []byte(data), nil
}

var String = Serde[string]{
	Serializer:   StringSerializer,
	Deserializer: StringDeserializer,
}

// Bytes passes payloads through unchanged.
var Bytes = Serde[[]byte]{
	Serializer: func(data []byte) ([]byte, error) {
		return data, nil
	},
	Deserializer: func(data []byte) ([]byte, error) {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	},
}
