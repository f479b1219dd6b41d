// Package jwtcrypto implements the fixed algorithm registry and signature
// verification for the validation pipeline. It is asymmetric-only: HMAC and
// "none" are always rejected regardless of issuer configuration.
package jwtcrypto

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"math/big"
)

// Alg is an IANA JOSE algorithm identifier.
type Alg string

const (
	RS256 Alg = "RS256"
	RS384 Alg = "RS384"
	RS512 Alg = "RS512"
	PS256 Alg = "PS256"
	PS384 Alg = "PS384"
	PS512 Alg = "PS512"
	ES256 Alg = "ES256"
	ES384 Alg = "ES384"
	ES512 Alg = "ES512"
	None  Alg = "none"
)

// Family identifies the signature scheme family an Alg belongs to.
type Family int

const (
	FamilyRSAPKCS1 Family = iota
	FamilyRSAPSS
	FamilyECDSA
	FamilyNone
	FamilyHMAC
)

// KeyType identifies the public key family a JWK/KeyInfo carries.
type KeyType string

const (
	KeyTypeRSA KeyType = "RSA"
	KeyTypeEC  KeyType = "EC"
)

// record describes one entry in the algorithm registry.
type record struct {
	family  Family
	keyType KeyType
	hash    crypto.Hash
	// ecdsaSigSize is the JOSE R‖S concatenated signature length; 0 for
	// non-ECDSA algorithms.
	ecdsaSigSize int
}

var registry = map[Alg]record{
	RS256: {family: FamilyRSAPKCS1, keyType: KeyTypeRSA, hash: crypto.SHA256},
	RS384: {family: FamilyRSAPKCS1, keyType: KeyTypeRSA, hash: crypto.SHA384},
	RS512: {family: FamilyRSAPKCS1, keyType: KeyTypeRSA, hash: crypto.SHA512},
	PS256: {family: FamilyRSAPSS, keyType: KeyTypeRSA, hash: crypto.SHA256},
	PS384: {family: FamilyRSAPSS, keyType: KeyTypeRSA, hash: crypto.SHA384},
	PS512: {family: FamilyRSAPSS, keyType: KeyTypeRSA, hash: crypto.SHA512},
	ES256: {family: FamilyECDSA, keyType: KeyTypeEC, hash: crypto.SHA256, ecdsaSigSize: 64},
	ES384: {family: FamilyECDSA, keyType: KeyTypeEC, hash: crypto.SHA384, ecdsaSigSize: 96},
	ES512: {family: FamilyECDSA, keyType: KeyTypeEC, hash: crypto.SHA512, ecdsaSigSize: 132},
	None:  {family: FamilyNone},
}

// IsRegistered reports whether alg is any algorithm this library knows
// about, including algorithms it always rejects (none, HS*). Used to
// distinguish UnsupportedAlgorithm (truly unknown alg) from a deliberate
// rejection of a known-but-disallowed algorithm.
func IsRegistered(alg string) bool {
	if _, ok := registry[Alg(alg)]; ok {
		return true
	}
	return isHMAC(alg)
}

// IsNone reports whether alg is the "none" algorithm.
func IsNone(alg string) bool {
	return Alg(alg) == None
}

// IsHMAC reports whether alg is any HMAC family member (HS256/384/512).
func IsHMAC(alg string) bool { return isHMAC(alg) }

func isHMAC(alg string) bool {
	switch alg {
	case "HS256", "HS384", "HS512":
		return true
	default:
		return false
	}
}

// KeyTypeFor returns the public-key family an alg requires, and whether alg
// is a supported asymmetric algorithm at all.
func KeyTypeFor(alg string) (KeyType, bool) {
	rec, ok := registry[Alg(alg)]
	if !ok || rec.family == FamilyNone {
		return "", false
	}
	return rec.keyType, true
}

// ErrorKind distinguishes why Verify failed, so the caller can map to the
// right EventType without string matching.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrUnsupportedAlgorithm
	ErrKeyAlgorithmMismatch
	ErrSignatureInvalid
)

// VerifyError is returned by Verify.
type VerifyError struct {
	Kind ErrorKind
	msg  string
}

func (e *VerifyError) Error() string { return e.msg }

func verifyErr(kind ErrorKind, msg string) *VerifyError {
	return &VerifyError{Kind: kind, msg: msg}
}

// Verify checks signature over signingInput using key, per alg's scheme.
// alg must already have passed the issuer's allow-list check; Verify itself
// only re-checks that alg is in the registry and asymmetric.
func Verify(alg string, key any, signingInput, signature []byte) *VerifyError {
	rec, ok := registry[Alg(alg)]
	if !ok || rec.family == FamilyNone {
		return verifyErr(ErrUnsupportedAlgorithm, "algorithm not supported: "+alg)
	}

	switch rec.family {
	case FamilyRSAPKCS1, FamilyRSAPSS:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return verifyErr(ErrKeyAlgorithmMismatch, "key is not an RSA public key")
		}
		digest := hashSum(rec.hash, signingInput)
		var err error
		if rec.family == FamilyRSAPKCS1 {
			err = rsa.VerifyPKCS1v15(pub, rec.hash, digest, signature)
		} else {
			err = rsa.VerifyPSS(pub, rec.hash, digest, signature, &rsa.PSSOptions{
				SaltLength: rsa.PSSSaltLengthEqualsHash,
				Hash:       rec.hash,
			})
		}
		if err != nil {
			return verifyErr(ErrSignatureInvalid, "signature verification failed: "+err.Error())
		}
		return nil

	case FamilyECDSA:
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return verifyErr(ErrKeyAlgorithmMismatch, "key is not an EC public key")
		}
		if len(signature) != rec.ecdsaSigSize {
			return verifyErr(ErrSignatureInvalid, "ECDSA signature has wrong length for alg")
		}
		half := len(signature) / 2
		r := new(big.Int).SetBytes(signature[:half])
		s := new(big.Int).SetBytes(signature[half:])
		digest := hashSum(rec.hash, signingInput)
		if !ecdsa.Verify(pub, digest, r, s) {
			return verifyErr(ErrSignatureInvalid, "signature verification failed")
		}
		return nil

	default:
		return verifyErr(ErrUnsupportedAlgorithm, "algorithm not supported: "+alg)
	}
}

func hashSum(h crypto.Hash, data []byte) []byte {
	switch h {
	case crypto.SHA256:
		sum := sha256.Sum256(data)
		return sum[:]
	case crypto.SHA384:
		sum := sha512.Sum384(data)
		return sum[:]
	case crypto.SHA512:
		sum := sha512.Sum512(data)
		return sum[:]
	default:
		// Impossible: every registry entry uses one of the above.
		panic("jwtcrypto: unsupported hash in registry")
	}
}
