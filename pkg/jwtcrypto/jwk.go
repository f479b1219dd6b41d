package jwtcrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
)

// RawJWK mirrors the RFC 7517 fields this library consumes. Unknown fields
// in the source JSON are ignored by the caller (jwkset), not here.
type RawJWK struct {
	Kty string
	Use string
	Kid string
	Alg string
	N   string // RSA modulus
	E   string // RSA exponent
	Crv string // EC curve
	X   string // EC x coordinate
	Y   string // EC y coordinate
}

// ParsePublicKey builds a Go public key from a RawJWK. It returns the
// inferred KeyType so the caller can cross-check against the key's declared
// alg (if any) without re-deriving it.
func ParsePublicKey(jwk RawJWK) (any, KeyType, error) {
	switch jwk.Kty {
	case "RSA":
		key, err := parseRSAKey(jwk)
		return key, KeyTypeRSA, err
	case "EC":
		key, err := parseECKey(jwk)
		return key, KeyTypeEC, err
	default:
		return nil, "", fmt.Errorf("unsupported kty %q", jwk.Kty)
	}
}

func parseRSAKey(jwk RawJWK) (*rsa.PublicKey, error) {
	if jwk.N == "" || jwk.E == "" {
		return nil, fmt.Errorf("RSA key missing n/e")
	}
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decoding n: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decoding e: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, fmt.Errorf("RSA exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}

func parseECKey(jwk RawJWK) (*ecdsa.PublicKey, error) {
	if jwk.X == "" || jwk.Y == "" {
		return nil, fmt.Errorf("EC key missing x/y")
	}
	curve, size, err := curveFor(jwk.Crv)
	if err != nil {
		return nil, err
	}
	xBytes, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("decoding x: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("decoding y: %w", err)
	}
	if len(xBytes) != size || len(yBytes) != size {
		return nil, fmt.Errorf("EC coordinate has unexpected length for curve %s", jwk.Crv)
	}
	pub := &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}
	if !curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("EC point is not on curve %s", jwk.Crv)
	}
	return pub, nil
}

// curveFor maps a JWK "crv" value to a Go curve and its coordinate byte
// size, which doubles as half the JOSE ECDSA signature length (§4.3).
func curveFor(crv string) (elliptic.Curve, int, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), 32, nil
	case "P-384":
		return elliptic.P384(), 48, nil
	case "P-521":
		return elliptic.P521(), 66, nil
	default:
		return nil, 0, fmt.Errorf("unsupported EC curve %q", crv)
	}
}
