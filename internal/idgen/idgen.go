// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
//
// IDs are a prefix, a base36 millisecond timestamp, and a random nanoid
// suffix. The timestamp keeps IDs roughly time-ordered; the suffix keeps two
// IDs minted in the same millisecond apart.
package idgen

import (
	"fmt"
	"strconv"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RegistrationPrefix is prepended to every registration ID.
const RegistrationPrefix = "reg_"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated.
var Length = 12

// now is swapped out in tests.
var now = time.Now

// Registration returns a new registration ID.
func Registration() (string, error) {
	return GenerateWithPrefix(RegistrationPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	suffix, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	ts := strconv.FormatInt(now().UnixMilli(), 36)
	return prefix + ts + suffix, nil
}
