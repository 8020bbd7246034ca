package signatures

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/loganmanery/cryptopack/internal/textenc"
)

// Sign returns the hex PKCS#1 v1.5 signature of sha256(data).
// Empty data is valid input.
func Sign(data []byte, key PrivateKey) (string, error) {
	if key.key == nil {
		return "", fmt.Errorf("%w: empty private key", ErrMalformedKey)
	}

	digest := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return textenc.Hex(sig), nil
}

// SignString signs the UTF-16LE encoding of s
func SignString(s string, key PrivateKey) (string, error) {
	return Sign(textenc.UTF16LE(s), key)
}

// Verify reports whether signature is a valid signature of data under key.
// Malformed signatures are reported as false rather than as an error.
func Verify(data []byte, signature string, key PublicKey) bool {
	if key.key == nil {
		return false
	}

	sig, err := textenc.ParseHex(signature)
	if err != nil || len(sig) == 0 {
		return false
	}

	digest := sha256.Sum256(data)
	return rsa.VerifyPKCS1v15(key.key, crypto.SHA256, digest[:], sig) == nil
}

// VerifyString verifies a signature made with SignString
func VerifyString(s, signature string, key PublicKey) bool {
	return Verify(textenc.UTF16LE(s), signature, key)
}
