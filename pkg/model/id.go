package model

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDLength is the length of identifiers produced by GenerateID. With the
// 64-symbol URL-safe alphabet this gives 126 bits of entropy.
const IDLength = 21

// NewID returns a random URL-safe identifier.
func NewID() (string, error) {
	return gonanoid.New(IDLength)
}

// GenerateID returns a random URL-safe identifier. It panics if the system
// random source fails.
func GenerateID() string {
	return gonanoid.Must(IDLength)
}
