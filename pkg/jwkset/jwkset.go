// Package jwkset implements the JWKS store: parsing a JSON Web Key Set
// document into an immutable snapshot of KeyInfo records, and the key
// selection policy used by the validation pipeline.
package jwkset

import (
	"encoding/json"
	"fmt"

	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/jwtcrypto"
)

// KeyInfo is one verification key, owned by the JwksSnapshot that produced
// it. It is never mutated in place; rotation produces a new snapshot.
type KeyInfo struct {
	Kid    string
	Kty    jwtcrypto.KeyType
	Alg    string // empty if the JWK did not declare one
	Key    any    // *rsa.PublicKey or *ecdsa.PublicKey
	Use    string
}

// Snapshot is an immutable ordered set of KeyInfo plus the ETag of the
// response it came from and a monotonic generation counter.
type Snapshot struct {
	Keys       []KeyInfo
	ByKid      map[string]*KeyInfo
	ETag       string
	Generation uint64
}

type wireJWKS struct {
	Keys []wireJWK `json:"keys"`
}

type wireJWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// Parse builds a Snapshot from a raw JWKS JSON document. Keys with
// unsupported kty/alg are dropped with a counted event; the snapshot is
// built even if it ends up empty (selection will then fail per-lookup).
// generation is the caller-assigned monotonic sequence number for the
// resulting snapshot.
func Parse(body []byte, etag string, generation uint64, counter *events.Counter) (*Snapshot, *events.ValidationError) {
	var doc wireJWKS
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, counter.New(events.JwksParseFailed, fmt.Sprintf("parsing JWKS document: %v", err))
	}

	snap := &Snapshot{
		ByKid:      make(map[string]*KeyInfo, len(doc.Keys)),
		ETag:       etag,
		Generation: generation,
	}

	for _, k := range doc.Keys {
		if _, ok := jwtcrypto.KeyTypeFor(k.Alg); k.Alg != "" && !ok {
			counter.Increment(events.KeyDroppedUnknown)
			continue
		}
		key, kty, err := jwtcrypto.ParsePublicKey(jwtcrypto.RawJWK{
			Kty: k.Kty, Use: k.Use, Kid: k.Kid, Alg: k.Alg,
			N: k.N, E: k.E, Crv: k.Crv, X: k.X, Y: k.Y,
		})
		if err != nil {
			counter.Increment(events.KeyDroppedUnknown)
			continue
		}

		info := KeyInfo{Kid: k.Kid, Kty: kty, Alg: k.Alg, Key: key, Use: k.Use}
		snap.Keys = append(snap.Keys, info)
	}

	// Second pass to populate ByKid with stable pointers into the final
	// slice (append above may have reallocated mid-loop). First occurrence
	// wins; see spec.md §8 boundary behaviors.
	seen := make(map[string]bool, len(snap.Keys))
	for i := range snap.Keys {
		kid := snap.Keys[i].Kid
		if kid == "" {
			continue
		}
		if seen[kid] {
			counter.Increment(events.DuplicateKidDropped)
			continue
		}
		seen[kid] = true
		snap.ByKid[kid] = &snap.Keys[i]
	}

	return snap, nil
}

// Select implements spec.md §4.4's selection policy:
//  1. kid present -> exact match or NoKeyForKid.
//  2. else exactly one key matches alg's key type -> that key.
//  3. else exactly one key total -> that key.
//  4. otherwise AmbiguousKeySelection.
func (s *Snapshot) Select(kid, alg string, counter *events.Counter) (*KeyInfo, *events.ValidationError) {
	if kid != "" {
		if info, ok := s.ByKid[kid]; ok {
			return info, nil
		}
		return nil, counter.New(events.NoKeyForKid, "no key found for kid "+kid)
	}

	wantKty, ok := jwtcrypto.KeyTypeFor(alg)
	if ok {
		var match *KeyInfo
		count := 0
		for i := range s.Keys {
			if s.Keys[i].Kty == wantKty {
				count++
				match = &s.Keys[i]
			}
		}
		if count == 1 {
			return match, nil
		}
	}

	if len(s.Keys) == 1 {
		return &s.Keys[0], nil
	}

	return nil, counter.New(events.AmbiguousKeySelection, "cannot unambiguously select a key without kid")
}
