// Package symmetric encrypts text under a key derived from a password.
//
// The key is PBKDF2 over the password with a fixed, non-secret salt and 100
// rounds, so the password is the only secret input. Ciphertexts are
// AES-128-CBC with PKCS#7 padding and a fresh random IV, written as
// "hex(iv);hex(ciphertext)". The salt is fixed to stay compatible with
// ciphertexts that already exist. There is no authentication tag: a wrong
// password is detected only through invalid padding, so Decrypt may in rare
// cases return text that differs from the original instead of failing.
package symmetric

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loganmanery/cryptopack/internal/crypto"
	"github.com/loganmanery/cryptopack/internal/textenc"
)

const (
	// KeyIterations is the PBKDF2 round count for the derived key
	KeyIterations = 100

	// KeySize is the AES key length in bytes (AES-128)
	KeySize = 16

	// IVSize is the CBC initialization vector length in bytes
	IVSize = crypto.BlockSize

	fieldSeparator = ";"
)

var (
	// ErrDecryption is returned when a ciphertext can not be decrypted with the given password
	ErrDecryption = errors.New("decryption failed")

	// ErrMalformedCiphertext is returned when the encoded ciphertext can not be split
	// into an IV and ciphertext. Errors carrying it also match ErrDecryption.
	ErrMalformedCiphertext = fmt.Errorf("%w: malformed ciphertext", ErrDecryption)
)

// keySalt is shared by every encryption; it is not a secret
var keySalt = []byte{132, 199, 135, 54, 237, 124, 78, 10, 42, 169, 237, 35, 102, 186, 74, 230}

var primitives = crypto.NewCryptoService()

// Encrypt encrypts the UTF-8 bytes of plaintext under a key derived from
// password. Two calls with the same input give different output.
func Encrypt(plaintext, password string) (string, error) {
	key := deriveKey(password)
	defer clear(key)

	iv, err := primitives.GenerateSalt(IVSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext, err := primitives.EncryptCBC([]byte(plaintext), key, iv)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}

	return textenc.Hex(iv) + fieldSeparator + textenc.Hex(ciphertext), nil
}

// Decrypt reverses Encrypt. It fails with ErrDecryption when the password is
// wrong or the ciphertext is corrupt, and with ErrMalformedCiphertext when
// the input is not two hex fields.
func Decrypt(encoded, password string) (string, error) {
	fields := strings.Split(encoded, fieldSeparator)
	if len(fields) != 2 {
		return "", fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformedCiphertext, len(fields))
	}

	iv, err := textenc.ParseHex(fields[0])
	if err != nil {
		return "", fmt.Errorf("%w: iv: %v", ErrMalformedCiphertext, err)
	}
	if len(iv) != IVSize {
		return "", fmt.Errorf("%w: iv is %d bytes, want %d", ErrMalformedCiphertext, len(iv), IVSize)
	}

	ciphertext, err := textenc.ParseHex(fields[1])
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrMalformedCiphertext, err)
	}

	key := deriveKey(password)
	defer clear(key)

	plaintext, err := primitives.DecryptCBC(ciphertext, key, iv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return string(plaintext), nil
}

func deriveKey(password string) []byte {
	return primitives.DeriveKey([]byte(password), keySalt, KeyIterations, KeySize)
}
