package signatures

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"

	"github.com/loganmanery/cryptopack/internal/textenc"
)

// MLDSAAlgorithm names the post-quantum scheme in serialized keys
const MLDSAAlgorithm = "ML-DSA-65"

type mldsaRecord struct {
	Algorithm string `json:"Algorithm"`
	PublicKey []byte `json:"PublicKey"`
	SecretKey []byte `json:"SecretKey,omitempty"`
}

// MLDSAPrivateKey is an ML-DSA-65 signing key
type MLDSAPrivateKey struct {
	pub *mldsa65.PublicKey
	key *mldsa65.PrivateKey
}

// MLDSAPublicKey is an ML-DSA-65 verifying key
type MLDSAPublicKey struct {
	key *mldsa65.PublicKey
}

// GenerateMLDSAKey creates a new ML-DSA-65 key pair
func GenerateMLDSAKey() (MLDSAPrivateKey, error) {
	pub, priv, err := mldsa65.GenerateKey(rand.Reader)
	if err != nil {
		return MLDSAPrivateKey{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return MLDSAPrivateKey{pub: pub, key: priv}, nil
}

// Public returns the verifying key
func (k MLDSAPrivateKey) Public() MLDSAPublicKey {
	return MLDSAPublicKey{key: k.pub}
}

// MarshalJSON encodes the algorithm, public key and secret key
func (k MLDSAPrivateKey) MarshalJSON() ([]byte, error) {
	if k.key == nil {
		return nil, fmt.Errorf("%w: empty private key", ErrMalformedKey)
	}
	pub, err := k.pub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sec, err := k.key.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(mldsaRecord{Algorithm: MLDSAAlgorithm, PublicKey: pub, SecretKey: sec})
}

// MarshalJSON encodes the algorithm and public key
func (k MLDSAPublicKey) MarshalJSON() ([]byte, error) {
	if k.key == nil {
		return nil, fmt.Errorf("%w: empty public key", ErrMalformedKey)
	}
	pub, err := k.key.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(mldsaRecord{Algorithm: MLDSAAlgorithm, PublicKey: pub})
}

// ParseMLDSAPrivateKey reads a key written by MLDSAPrivateKey.MarshalJSON
func ParseMLDSAPrivateKey(data []byte) (MLDSAPrivateKey, error) {
	rec, err := parseMLDSARecord(data)
	if err != nil {
		return MLDSAPrivateKey{}, err
	}
	if len(rec.SecretKey) != mldsa65.PrivateKeySize {
		return MLDSAPrivateKey{}, fmt.Errorf("%w: secret key size %d", ErrMalformedKey, len(rec.SecretKey))
	}

	var priv mldsa65.PrivateKey
	if err := priv.UnmarshalBinary(rec.SecretKey); err != nil {
		return MLDSAPrivateKey{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	pub, err := parseMLDSAPublic(rec.PublicKey)
	if err != nil {
		return MLDSAPrivateKey{}, err
	}
	return MLDSAPrivateKey{pub: pub, key: &priv}, nil
}

// ParseMLDSAPublicKey reads a public key record. Private key records are accepted too.
func ParseMLDSAPublicKey(data []byte) (MLDSAPublicKey, error) {
	rec, err := parseMLDSARecord(data)
	if err != nil {
		return MLDSAPublicKey{}, err
	}
	pub, err := parseMLDSAPublic(rec.PublicKey)
	if err != nil {
		return MLDSAPublicKey{}, err
	}
	return MLDSAPublicKey{key: pub}, nil
}

// SignMLDSA returns the hex ML-DSA-65 signature of data
func SignMLDSA(data []byte, key MLDSAPrivateKey) (string, error) {
	if key.key == nil {
		return "", fmt.Errorf("%w: empty private key", ErrMalformedKey)
	}

	sig := make([]byte, mldsa65.SignatureSize)
	if err := mldsa65.SignTo(key.key, data, nil, false, sig); err != nil {
		return "", fmt.Errorf("failed to sign: %w", err)
	}
	return textenc.Hex(sig), nil
}

// VerifyMLDSA reports whether signature is valid for data under key
func VerifyMLDSA(data []byte, signature string, key MLDSAPublicKey) bool {
	if key.key == nil {
		return false
	}
	sig, err := textenc.ParseHex(signature)
	if err != nil || len(sig) != mldsa65.SignatureSize {
		return false
	}
	return mldsa65.Verify(key.key, data, nil, sig)
}

func parseMLDSARecord(data []byte) (mldsaRecord, error) {
	var rec mldsaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	if rec.Algorithm != MLDSAAlgorithm {
		return rec, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedKey, rec.Algorithm)
	}
	return rec, nil
}

func parseMLDSAPublic(b []byte) (*mldsa65.PublicKey, error) {
	if len(b) != mldsa65.PublicKeySize {
		return nil, fmt.Errorf("%w: public key size %d", ErrMalformedKey, len(b))
	}
	var pub mldsa65.PublicKey
	if err := pub.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	return &pub, nil
}
