// Package passwords stores passwords as salted PBKDF2 keys that can be
// persisted safely and later checked against a candidate password.
package passwords

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/loganmanery/cryptopack/internal/crypto"
	"github.com/loganmanery/cryptopack/internal/textenc"
)

const (
	// DefaultIterations is the PBKDF2 round count for new stored passwords
	DefaultIterations = 10000

	// SaltSize is the length of the per-password random salt in bytes
	SaltSize = 32

	// KeySize is the length of the derived key in bytes
	KeySize = 32

	fieldSeparator = ";"
)

// ErrMalformedCredential is returned when a serialized stored password cannot be parsed
var ErrMalformedCredential = errors.New("malformed stored password")

var primitives = crypto.NewCryptoService()

// StoredPassword is the irreversible form of a password. The plaintext can
// not be recovered from it, so it is safe to store without further encryption.
type StoredPassword struct {
	iterations int
	salt       []byte
	key        []byte
}

// FromPlainText creates a stored password with a fresh random salt and
// DefaultIterations rounds. An error means the random source failed.
func FromPlainText(plaintext string) (StoredPassword, error) {
	salt, err := primitives.GenerateSalt(SaltSize)
	if err != nil {
		return StoredPassword{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	return StoredPassword{
		iterations: DefaultIterations,
		salt:       salt,
		key:        deriveKey(plaintext, salt, DefaultIterations),
	}, nil
}

// New builds a stored password from its parts. The slices are copied.
func New(iterations int, salt, key []byte) StoredPassword {
	return StoredPassword{
		iterations: iterations,
		salt:       append([]byte(nil), salt...),
		key:        append([]byte(nil), key...),
	}
}

// Iterations returns the PBKDF2 round count
func (p StoredPassword) Iterations() int {
	return p.iterations
}

// Salt returns a copy of the salt
func (p StoredPassword) Salt() []byte {
	return append([]byte(nil), p.salt...)
}

// Key returns a copy of the derived key
func (p StoredPassword) Key() []byte {
	return append([]byte(nil), p.key...)
}

// Check reports whether plaintext is the password this value was created from.
// The derived keys are compared in constant time.
func (p StoredPassword) Check(plaintext string) bool {
	if len(p.key) == 0 {
		return false
	}
	candidate := deriveKey(plaintext, p.salt, p.iterations)
	defer clear(candidate)
	return subtle.ConstantTimeCompare(candidate, p.key) == 1
}

// String returns "iterations;hex(salt);hex(key)"
func (p StoredPassword) String() string {
	return strconv.Itoa(p.iterations) + fieldSeparator +
		textenc.Hex(p.salt) + fieldSeparator +
		textenc.Hex(p.key)
}

// Parse reads a stored password in the format produced by String. Salt and
// key must be lowercase hex so that String returns the input unchanged.
func Parse(s string) (StoredPassword, error) {
	fields := strings.Split(s, fieldSeparator)
	if len(fields) != 3 {
		return StoredPassword{}, fmt.Errorf("%w: expected 3 fields, got %d", ErrMalformedCredential, len(fields))
	}

	iterations, err := strconv.Atoi(fields[0])
	if err != nil || iterations < 0 || strconv.Itoa(iterations) != fields[0] {
		return StoredPassword{}, fmt.Errorf("%w: invalid iteration count %q", ErrMalformedCredential, fields[0])
	}

	salt, err := textenc.ParseLowerHex(fields[1])
	if err != nil {
		return StoredPassword{}, fmt.Errorf("%w: salt: %v", ErrMalformedCredential, err)
	}

	key, err := textenc.ParseLowerHex(fields[2])
	if err != nil {
		return StoredPassword{}, fmt.Errorf("%w: key: %v", ErrMalformedCredential, err)
	}

	return StoredPassword{iterations: iterations, salt: salt, key: key}, nil
}

// TryParse is Parse for callers probing untrusted strings
func TryParse(s string) (StoredPassword, bool) {
	p, err := Parse(s)
	if err != nil {
		return StoredPassword{}, false
	}
	return p, true
}

// deriveKey runs PBKDF2 over the UTF-16LE bytes of the password
func deriveKey(plaintext string, salt []byte, iterations int) []byte {
	password := textenc.UTF16LE(plaintext)
	defer clear(password)
	return primitives.DeriveKey(password, salt, iterations, KeySize)
}
