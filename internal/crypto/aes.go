package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// aesCryptoService implements CryptoService using AES-CBC and PBKDF2
type aesCryptoService struct{}

// EncryptCBC encrypts plaintext using AES-CBC with PKCS#7 padding
func (s *aesCryptoService) EncryptCBC(plaintext, key, iv []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(iv), BlockSize)
	}

	// Create a new AES cipher block
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	padded := pkcs7Pad(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	// The padded copy holds the plaintext
	clear(padded)
	return ciphertext, nil
}

// DecryptCBC decrypts ciphertext using AES-CBC and removes PKCS#7 padding
func (s *aesCryptoService) DecryptCBC(ciphertext, key, iv []byte) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(iv), BlockSize)
	}

	// Ensure the ciphertext is made of whole blocks
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a positive multiple of %d",
			ErrInvalidPadding, len(ciphertext), BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, BlockSize)
	if err != nil {
		clear(plaintext)
		return nil, err
	}
	return unpadded, nil
}

// GenerateSalt generates a cryptographically secure random salt
func (s *aesCryptoService) GenerateSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return salt, nil
}

// pkcs7Pad appends between 1 and blockSize bytes, each holding the pad length
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+n)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// pkcs7Unpad validates and strips PKCS#7 padding
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-n], nil
}
