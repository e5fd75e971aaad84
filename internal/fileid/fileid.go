// Package fileid provides deterministic, content-addressed document IDs.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

const prefix = "doc_"

// idHexLen is the number of hex digits of the digest kept in an ID (128 bits).
const idHexLen = 32

// ContentDocID returns a stable document ID for the given bytes.
// Identical content always yields the same ID, so re-uploads resolve to one document.
func ContentDocID(content []byte) string {
	hash := sha256.Sum256(content)
	return prefix + hex.EncodeToString(hash[:])[:idHexLen]
}

// Valid reports whether id has the shape produced by ContentDocID.
func Valid(id string) bool {
	if len(id) != len(prefix)+idHexLen || id[:len(prefix)] != prefix {
		return false
	}
	_, err := hex.DecodeString(id[len(prefix):])
	return err == nil
}
