package signatures

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
)

// DefaultKeyBits is the modulus size used by GeneratePrivateKey
const DefaultKeyBits = 2048

// MinKeyBits is the smallest modulus GeneratePrivateKeyBits accepts
const MinKeyBits = 2048

var (
	// ErrMalformedKey is returned when a serialized key cannot be used
	ErrMalformedKey = errors.New("malformed key")

	// ErrKeySize is returned for a modulus size below MinKeyBits
	ErrKeySize = errors.New("key size too small")
)

// keyRecord is the JSON layout of a serialized key
type keyRecord struct {
	D        []byte `json:"D,omitempty"`
	DP       []byte `json:"DP,omitempty"`
	DQ       []byte `json:"DQ,omitempty"`
	Exponent []byte `json:"Exponent"`
	InverseQ []byte `json:"InverseQ,omitempty"`
	Modulus  []byte `json:"Modulus"`
	P        []byte `json:"P,omitempty"`
	Q        []byte `json:"Q,omitempty"`
}

// PrivateKey is an RSA signing key. The zero value is not usable.
type PrivateKey struct {
	key *rsa.PrivateKey
}

// PublicKey is the verifying half of a PrivateKey. The zero value verifies nothing.
type PublicKey struct {
	key *rsa.PublicKey
}

// GeneratePrivateKey creates a new DefaultKeyBits private key
func GeneratePrivateKey() (PrivateKey, error) {
	return GeneratePrivateKeyBits(DefaultKeyBits)
}

// GeneratePrivateKeyBits creates a new private key with the given modulus size
func GeneratePrivateKeyBits(bits int) (PrivateKey, error) {
	if bits < MinKeyBits {
		return PrivateKey{}, fmt.Errorf("%w: got %d, want at least %d", ErrKeySize, bits, MinKeyBits)
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("failed to generate key: %w", err)
	}
	return PrivateKey{key: key}, nil
}

// ParsePrivateKey reads a private key from its JSON record
func ParsePrivateKey(data []byte) (PrivateKey, error) {
	var rec keyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	if len(rec.D) == 0 || len(rec.P) == 0 || len(rec.Q) == 0 {
		return PrivateKey{}, fmt.Errorf("%w: missing private fields", ErrMalformedKey)
	}

	pub, err := publicFromRecord(rec)
	if err != nil {
		return PrivateKey{}, err
	}

	key := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(rec.D),
		Primes: []*big.Int{
			new(big.Int).SetBytes(rec.P),
			new(big.Int).SetBytes(rec.Q),
		},
	}
	if err := key.Validate(); err != nil {
		return PrivateKey{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}
	key.Precompute()

	// CRT values, when present, must agree with the ones computed from the primes
	pre := key.Precomputed
	if !crtMatches(rec.DP, pre.Dp) || !crtMatches(rec.DQ, pre.Dq) || !crtMatches(rec.InverseQ, pre.Qinv) {
		return PrivateKey{}, fmt.Errorf("%w: CRT parameters do not match primes", ErrMalformedKey)
	}

	return PrivateKey{key: key}, nil
}

// ParsePublicKey reads a public key from its JSON record. A private key
// record is accepted too; only its Modulus and Exponent are kept.
func ParsePublicKey(data []byte) (PublicKey, error) {
	var rec keyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	pub, err := publicFromRecord(rec)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{key: pub}, nil
}

// Public projects the public half of the key
func (k PrivateKey) Public() PublicKey {
	if k.key == nil {
		return PublicKey{}
	}
	pub := k.key.PublicKey
	pub.N = new(big.Int).Set(pub.N)
	return PublicKey{key: &pub}
}

// Bits returns the modulus size, or 0 for the zero value
func (k PrivateKey) Bits() int {
	if k.key == nil {
		return 0
	}
	return k.key.N.BitLen()
}

// MarshalJSON encodes every private key field
func (k PrivateKey) MarshalJSON() ([]byte, error) {
	if k.key == nil {
		return nil, fmt.Errorf("%w: empty private key", ErrMalformedKey)
	}

	size := (k.key.N.BitLen() + 7) / 8
	half := (size + 1) / 2
	pre := k.key.Precomputed

	return json.Marshal(keyRecord{
		D:        fixedBytes(k.key.D, size),
		DP:       fixedBytes(pre.Dp, half),
		DQ:       fixedBytes(pre.Dq, half),
		Exponent: big.NewInt(int64(k.key.E)).Bytes(),
		InverseQ: fixedBytes(pre.Qinv, half),
		Modulus:  fixedBytes(k.key.N, size),
		P:        fixedBytes(k.key.Primes[0], half),
		Q:        fixedBytes(k.key.Primes[1], half),
	})
}

// Modulus returns the big-endian modulus bytes
func (k PublicKey) Modulus() []byte {
	if k.key == nil {
		return nil
	}
	return k.key.N.Bytes()
}

// Exponent returns the big-endian public exponent bytes
func (k PublicKey) Exponent() []byte {
	if k.key == nil {
		return nil
	}
	return big.NewInt(int64(k.key.E)).Bytes()
}

// Equal reports whether both keys have the same modulus and exponent
func (k PublicKey) Equal(other PublicKey) bool {
	if k.key == nil || other.key == nil {
		return k.key == other.key
	}
	return k.key.Equal(other.key)
}

// MarshalJSON encodes only the Exponent and Modulus fields
func (k PublicKey) MarshalJSON() ([]byte, error) {
	if k.key == nil {
		return nil, fmt.Errorf("%w: empty public key", ErrMalformedKey)
	}
	return json.Marshal(keyRecord{
		Exponent: k.Exponent(),
		Modulus:  k.Modulus(),
	})
}

func publicFromRecord(rec keyRecord) (*rsa.PublicKey, error) {
	if len(rec.Modulus) == 0 || len(rec.Exponent) == 0 {
		return nil, fmt.Errorf("%w: missing modulus or exponent", ErrMalformedKey)
	}

	e := new(big.Int).SetBytes(rec.Exponent)
	if !e.IsInt64() || e.Int64() < 3 || e.Int64() > math.MaxInt32 || e.Bit(0) == 0 {
		return nil, fmt.Errorf("%w: unsupported exponent", ErrMalformedKey)
	}

	n := new(big.Int).SetBytes(rec.Modulus)
	if n.BitLen() < 512 {
		return nil, fmt.Errorf("%w: modulus too small", ErrMalformedKey)
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// fixedBytes left-pads x to size bytes; larger values are returned unpadded
func fixedBytes(x *big.Int, size int) []byte {
	b := x.Bytes()
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}

func crtMatches(serialized []byte, computed *big.Int) bool {
	if len(serialized) == 0 || computed == nil {
		return true
	}
	return bytes.Equal(bytes.TrimLeft(serialized, "\x00"), computed.Bytes())
}
