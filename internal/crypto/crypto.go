package crypto

import "errors"

const (
	// BlockSize is the AES block size, which is also the CBC IV size
	BlockSize = 16
)

var (
	// ErrInvalidPadding is returned when PKCS#7 padding is missing or corrupt
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrInvalidIVSize is returned when the IV is not exactly one block long
	ErrInvalidIVSize = errors.New("invalid IV size")
)

// CryptoService defines the primitive operations the protocol packages compose
type CryptoService interface {
	// DeriveKey derives keyLen bytes from a password and salt with PBKDF2
	DeriveKey(password, salt []byte, iterations, keyLen int) []byte

	// GenerateSalt generates n cryptographically secure random bytes
	GenerateSalt(n int) ([]byte, error)

	// EncryptCBC pads and encrypts plaintext with AES-CBC
	EncryptCBC(plaintext, key, iv []byte) ([]byte, error)

	// DecryptCBC decrypts ciphertext with AES-CBC and strips the padding
	DecryptCBC(ciphertext, key, iv []byte) ([]byte, error)
}

// NewCryptoService creates a new instance of the default crypto service
func NewCryptoService() CryptoService {
	return &aesCryptoService{}
}
