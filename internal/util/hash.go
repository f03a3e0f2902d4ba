package util

import (
	"crypto/sha256"
	"fmt"
	"strconv"

	"github.com/stepflow-io/stepflow/perr"
)

// Base36Hash returns a base36 hash of the input string. Our approach is lossy
// using only part of the true hash, but good enough for our purposes to
// prevent clashes.
func Base36Hash(input string, length int) (string, error) {
	sum := sha256.Sum256([]byte(input))
	bs := fmt.Sprintf("%x", sum)

	// Convert the first 16 chars of the hash from hex to base 36
	u1Hex := bs[0:16]
	u1, err := strconv.ParseUint(u1Hex, 16, 64)
	if err != nil {
		return "", perr.InternalWithMessage("Unable to create hash.")
	}
	u1Base36 := strconv.FormatUint(u1, 36)

	// Either take the last {length} chars, or pad the result if needed
	if len(u1Base36) > length {
		return u1Base36[len(u1Base36)-length:], nil
	}
	return fmt.Sprintf("%0*s", length, u1Base36), nil
}

// CalculateHash is the standard content hash used for caching fingerprints.
func CalculateHash(s string) (string, error) {
	return Base36Hash(s, 16)
}
