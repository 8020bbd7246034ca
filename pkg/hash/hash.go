package hash

import (
	"crypto/sha256"

	"github.com/loganmanery/cryptopack/internal/textenc"
)

// SHA256 returns the lowercase hex SHA-256 digest of data
func SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return textenc.Hex(sum[:])
}

// SHA256String hashes the UTF-16LE encoding of s, the same string encoding
// used when signing strings
func SHA256String(s string) string {
	return SHA256(textenc.UTF16LE(s))
}
