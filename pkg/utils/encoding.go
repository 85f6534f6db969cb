// Package utils provides the generic JSON marshal/unmarshal helpers that
// typedcache.JSONCodec encodes and decodes cached values through, so every
// typed cache store goes through one wrapped call site instead of a bare
// encoding/json call per Store[T] instantiation.
package utils

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes v, wrapping any failure with call-site context.
func MarshalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// UnmarshalJSON decodes data into v, wrapping any failure with call-site
// context and rejecting empty input outright.
func UnmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot unmarshal empty data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
