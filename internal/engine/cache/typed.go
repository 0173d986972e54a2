package cache

import (
	"encoding/json"
	"fmt"
)

// Put marshals value to JSON and stores it under key.
// Only a marshalling failure is returned; storage itself never fails.
func Put[T any](s *Store, key string, value T, opts ...Option) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling cache value for %q: %w", key, err)
	}
	s.Set(key, data, opts...)
	return nil
}

// Lookup fetches key and decodes it into T. Content that does not decode
// into T is reported as a miss.
func Lookup[T any](s *Store, key string, opts ...Option) (T, bool) {
	var value T
	data, ok := s.Get(key, opts...)
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(data, &value); err != nil {
		var zero T
		return zero, false
	}
	return value, true
}
