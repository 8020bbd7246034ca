package signatures

import (
	"github.com/mr-tron/base58/base58"
	"github.com/multiformats/go-multihash"
)

// KeyID returns a stable fingerprint of a public key: the base58 form of a
// sha2-256 multihash over Modulus || Exponent. The zero key has no ID.
func KeyID(key PublicKey) string {
	if key.key == nil {
		return ""
	}

	material := append(key.Modulus(), key.Exponent()...)
	sum, err := multihash.Sum(material, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only fails for unknown codes or bad lengths.
		return ""
	}
	return base58.Encode(sum)
}
