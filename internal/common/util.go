package common

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns size bytes read from crypto/rand.
//
// A failing random source is reported rather than papered over: callers that
// derive salts or key material must abort when it happens.
func RandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return b, nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is useful for removing sensitive data such as passwords or private
// key encodings from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
