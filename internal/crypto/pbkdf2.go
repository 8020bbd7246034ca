package crypto

import (
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

// DeriveKey derives a key from a password and salt using PBKDF2.
// HMAC-SHA1 is the PRF so that keys match data produced by RFC 2898 implementations.
func (s *aesCryptoService) DeriveKey(password, salt []byte, iterations, keyLen int) []byte {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha1.New)
}
