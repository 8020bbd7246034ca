// Package signatures creates and checks digital signatures over arbitrary data.
//
// # Scheme
//
// Signatures are RSA PKCS#1 v1.5 over the SHA-256 digest of the data and are
// returned as lowercase hex. Verification is a boolean: a wrong key, altered
// data, or a signature that is not valid hex all report false.
//
// # Keys
//
// [GeneratePrivateKey] creates a 2048-bit key. Keys serialize to JSON records
// whose fields are big-endian byte arrays (standard base64 in JSON):
//
//	{"D":..,"DP":..,"DQ":..,"Exponent":..,"InverseQ":..,"Modulus":..,"P":..,"Q":..}
//
// The public key record holds only Exponent and Modulus and can be derived at
// any time with [PrivateKey.Public]. [KeyID] gives a short fingerprint of a
// public key.
//
// # Strings
//
// [SignString] and [VerifyString] sign the UTF-16LE code units of the string,
// two bytes per unit. This matches signatures produced by the earlier
// implementation of this library. Callers that need UTF-8 should convert the
// string themselves and use [Sign] and [Verify]. Signer and verifier must use
// the same form: verification fails for any encoding mismatch.
//
// # ML-DSA-65
//
// A post-quantum alternative is available through [GenerateMLDSAKey],
// [SignMLDSA] and [VerifyMLDSA] with the same verification contract.
package signatures
