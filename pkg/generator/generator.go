// Package generator produces random passwords and BIP-39 passphrases suitable
// for stored credentials, signing key passphrases and symmetric codec passwords.
package generator

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	// DefaultLength is the password length used by Password when length is zero
	DefaultLength = 20

	// DefaultPassphraseBits is the entropy of a 12 word passphrase
	DefaultPassphraseBits = 128
)

var (
	// ErrInvalidLength is returned for a non-positive or too short password length
	ErrInvalidLength = errors.New("invalid password length")

	// ErrInvalidEntropy is returned when passphrase entropy is not 128..256 bits in steps of 32
	ErrInvalidEntropy = errors.New("entropy must be 128 to 256 bits in multiples of 32")

	// ErrNoCharacters is returned when options exclude every character class
	ErrNoCharacters = errors.New("no character set selected")
)

// Character sets
const (
	lowercase = "abcdefghijklmnopqrstuvwxyz"
	uppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	numbers   = "0123456789"
	symbols   = "!@#$%^&*()-_=+[]{}:,.<>?~"
	similar   = "il1Lo0O"
)

// PasswordOptions configures password generation
type PasswordOptions struct {
	Length         int
	Lowercase      bool
	Uppercase      bool
	Numbers        bool
	Symbols        bool
	ExcludeSimilar bool
}

// DefaultOptions uses every character class and avoids look-alike characters.
// The symbol set has no ';', so a password never collides with the stored
// password or ciphertext separators.
func DefaultOptions() PasswordOptions {
	return PasswordOptions{
		Length:         DefaultLength,
		Lowercase:      true,
		Uppercase:      true,
		Numbers:        true,
		Symbols:        true,
		ExcludeSimilar: true,
	}
}

// Password returns a random password of length characters with DefaultOptions
func Password(length int) (string, error) {
	opts := DefaultOptions()
	if length != 0 {
		opts.Length = length
	}
	return GeneratePassword(opts)
}

// GeneratePassword creates a random password with at least one character of
// every selected class
func GeneratePassword(opts PasswordOptions) (string, error) {
	classes := opts.classes()
	if len(classes) == 0 {
		return "", ErrNoCharacters
	}
	if opts.Length < len(classes) {
		return "", fmt.Errorf("%w: %d is shorter than the %d selected classes", ErrInvalidLength, opts.Length, len(classes))
	}

	all := strings.Join(classes, "")
	result := make([]byte, 0, opts.Length)

	// One from each class first, the rest from the union
	for _, class := range classes {
		c, err := pick(class)
		if err != nil {
			return "", err
		}
		result = append(result, c)
	}
	for len(result) < opts.Length {
		c, err := pick(all)
		if err != nil {
			return "", err
		}
		result = append(result, c)
	}

	if err := shuffle(result); err != nil {
		return "", err
	}
	return string(result), nil
}

// Passphrase returns a BIP-39 English mnemonic carrying entropyBits of
// randomness; 128 bits gives 12 words and 256 bits gives 24.
func Passphrase(entropyBits int) (string, error) {
	if entropyBits == 0 {
		entropyBits = DefaultPassphraseBits
	}
	if entropyBits < 128 || entropyBits > 256 || entropyBits%32 != 0 {
		return "", ErrInvalidEntropy
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer clear(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return mnemonic, nil
}

// ValidPassphrase reports whether s is a well-formed BIP-39 mnemonic
func ValidPassphrase(s string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(s))
}

func (o PasswordOptions) classes() []string {
	var out []string
	add := func(enabled bool, set string) {
		if !enabled {
			return
		}
		if o.ExcludeSimilar {
			set = strings.Map(func(r rune) rune {
				if strings.ContainsRune(similar, r) {
					return -1
				}
				return r
			}, set)
		}
		out = append(out, set)
	}
	add(o.Lowercase, lowercase)
	add(o.Uppercase, uppercase)
	add(o.Numbers, numbers)
	add(o.Symbols, symbols)
	return out
}

func pick(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// shuffle is a Fisher-Yates shuffle driven by crypto/rand
func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}

// randomInt generates a cryptographically secure random integer between 0 and max-1
func randomInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}
