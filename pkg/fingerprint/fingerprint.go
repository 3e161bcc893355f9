// Package fingerprint derives stable content hashes used to recognize
// duplicate records within a run.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// separator never appears in the hashed fields' textual form, so adjacent
// fields cannot run together into the same byte stream.
const separator = "\x1f"

// CalculateHash computes the hex SHA-256 hash of content.
func CalculateHash(content string) string {
	hash := sha256.Sum256([]byte(content))

	return hex.EncodeToString(hash[:])
}

// Of hashes the ordered fields.
func Of(fields ...string) string {
	h := sha256.New()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte(separator))
		}
		h.Write([]byte(f))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Seen tracks fingerprints already observed.
type Seen map[string]struct{}

// Add records fp and reports whether it was new.
func (s Seen) Add(fp string) bool {
	if _, ok := s[fp]; ok {
		return false
	}

	s[fp] = struct{}{}

	return true
}
