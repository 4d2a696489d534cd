// Package checksum computes the content digests used as document versions.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Matches reports whether data hashes to want. Surrounding quotes on want are
// ignored so HTTP entity tags can be passed directly.
func Matches(data []byte, want string) bool {
	want = strings.Trim(strings.TrimSpace(want), `"`)
	return want != "" && Sum(data) == want
}
