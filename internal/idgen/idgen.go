// Package idgen generates record ids in the service's shape: "rec" followed
// by random alphanumerics, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RecordPrefix starts every record id.
const RecordPrefix = "rec"

// Alphabet is the character set of the random portion.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters after the prefix.
const Length = 14

// RecordID returns a new record id.
func RecordID() (string, error) {
	return WithPrefix(RecordPrefix)
}

// WithPrefix returns prefix followed by Length random characters.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
