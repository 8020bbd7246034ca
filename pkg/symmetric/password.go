package symmetric

import (
	"fmt"

	"github.com/loganmanery/cryptopack/internal/textenc"
	"github.com/loganmanery/cryptopack/pkg/signatures"
)

// PasswordFromPublicKey derives a codec password "hex(modulus);hex(exponent)"
// from a serialized public (or private) key, so text can be encrypted for
// whoever publishes that key.
func PasswordFromPublicKey(publicKeyJSON []byte) (string, error) {
	pub, err := signatures.ParsePublicKey(publicKeyJSON)
	if err != nil {
		return "", fmt.Errorf("failed to parse public key: %w", err)
	}
	return textenc.Hex(pub.Modulus()) + fieldSeparator + textenc.Hex(pub.Exponent()), nil
}
