// Package id generates compact, URL-safe unique identifiers.
//
// Identifiers are UUIDv4 values encoded as unpadded lowercase base32,
// yielding a fixed 26-character string that is safe in URLs and file names
// while preserving the full 128 bits of randomness.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character lowercase identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}
