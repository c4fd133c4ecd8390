package database

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MarshalEncoding serializes a face encoding for backends without a vector type.
func MarshalEncoding(enc []float32) ([]byte, error) {
	b, err := msgpack.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("marshal encoding: %w", err)
	}
	return b, nil
}

// UnmarshalEncoding is the inverse of MarshalEncoding.
func UnmarshalEncoding(b []byte) ([]float32, error) {
	var enc []float32
	if err := msgpack.Unmarshal(b, &enc); err != nil {
		return nil, fmt.Errorf("unmarshal encoding: %w", err)
	}
	return enc, nil
}
