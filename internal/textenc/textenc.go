// Package textenc holds the byte and text conventions shared by the
// protocol packages: lowercase hex and the UTF-16LE string encoding.
package textenc

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// ErrInvalidHex is returned for odd-length input or non-hex characters.
var ErrInvalidHex = errors.New("invalid hex string")

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// UTF16LE returns the UTF-16 little-endian code units of s, two bytes per
// unit and no byte order mark. Invalid UTF-8 sequences become U+FFFD.
func UTF16LE(s string) []byte {
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// The encoder replaces invalid input instead of failing.
		return nil
	}
	return out
}

// FromUTF16LE decodes UTF-16LE bytes back to a string.
func FromUTF16LE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("utf-16 input has odd length %d", len(b))
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Hex encodes b as lowercase hex.
func Hex(b []byte) string {
	return hex.EncodeToString(b)
}

// ParseHex decodes a hex string, rejecting odd lengths and non-hex digits.
func ParseHex(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrInvalidHex, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// ParseLowerHex is ParseHex for canonical text that must round-trip through
// Hex unchanged, so uppercase digits are rejected.
func ParseLowerHex(s string) ([]byte, error) {
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 'A' && c <= 'F' {
			return nil, fmt.Errorf("%w: uppercase digit %q at %d", ErrInvalidHex, c, i)
		}
	}
	return ParseHex(s)
}
