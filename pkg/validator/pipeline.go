package validator

import (
	"context"
	"strings"

	"github.com/tokenguard/jwtguard/pkg/claims"
	"github.com/tokenguard/jwtguard/pkg/codec"
	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
	"github.com/tokenguard/jwtguard/pkg/jwtcrypto"
)

// pipelineResult carries every field later stages need, threaded through
// the state machine described in spec.md §4.9.
type pipelineResult struct {
	issuerCfg *issuer.Config
	decoded   *codec.DecodedJwt
	header    map[string]jsonlimits.Value
	payload   map[string]jsonlimits.Value
	alg       string
	kid       string
	typ       string
	rawToken  string
}

// runCommon executes every pipeline state shared by all three token types:
// FormatChecked through SignatureVerified. Type-specific claim validation
// happens in the caller.
func (v *TokenValidator) runCommon(ctx context.Context, raw string) (*pipelineResult, *events.ValidationError) {
	// Start -> FormatChecked
	if raw == "" {
		return nil, v.counter.New(events.TokenEmpty, "token is empty")
	}
	if verr := codec.CheckSize(raw, v.opts.MaxTokenSize, v.counter); verr != nil {
		return nil, verr
	}

	decoded, verr := codec.Split(raw, v.counter)
	if verr != nil {
		return nil, verr
	}

	// HeaderDecoded
	header, verr := jsonlimits.Decode(decoded.HeaderJSON, v.opts.JSONLimits, v.counter)
	if verr != nil {
		return nil, verr
	}

	// PayloadDecoded
	payload, verr := jsonlimits.Decode(decoded.PayloadJSON, v.opts.JSONLimits, v.counter)
	if verr != nil {
		return nil, verr
	}

	// IssuerResolved
	issClaim, ok := stringClaim(payload, "iss")
	if !ok {
		return nil, v.counter.New(events.MissingIssuerClaim, "token has no iss claim")
	}
	issuerCfg, verr := v.registry.Resolve(issClaim)
	if verr != nil {
		return nil, verr
	}

	// HeaderValidated
	alg, _ := stringClaim(header, "alg")
	typ, hasTyp := stringClaim(header, "typ")
	kid, _ := stringClaim(header, "kid")

	if jwtcrypto.IsNone(alg) {
		return nil, v.counter.NewWithContext(events.NoneAlgorithm, "alg \"none\" is never accepted", issClaim, kid, alg)
	}
	if jwtcrypto.IsHMAC(alg) {
		return nil, v.counter.NewWithContext(events.UnsupportedAlgorithm, "HMAC algorithms are never accepted", issClaim, kid, alg)
	}
	if !jwtcrypto.IsRegistered(alg) {
		return nil, v.counter.NewWithContext(events.UnsupportedAlgorithm, "unrecognized algorithm: "+alg, issClaim, kid, alg)
	}
	if !v.opts.allowsGlobally(alg) || !issuerCfg.AllowsAlgorithm(alg) {
		return nil, v.counter.NewWithContext(events.UnsupportedAlgorithm, "algorithm not allowed for this issuer: "+alg, issClaim, kid, alg)
	}
	if hasTyp && !typCompatible(typ) {
		return nil, v.counter.NewWithContext(events.UnsupportedTokenType, "unsupported typ header: "+typ, issClaim, kid, alg)
	}

	// KeyResolved
	keyInfo, verr := v.resolveKey(ctx, issuerCfg, kid, alg)
	if verr != nil {
		return nil, verr
	}

	// SignatureVerified
	if cerr := jwtcrypto.Verify(alg, keyInfo.Key, decoded.SigningInput, decoded.Signature); cerr != nil {
		switch cerr.Kind {
		case jwtcrypto.ErrKeyAlgorithmMismatch:
			return nil, v.counter.NewWithContext(events.KeyAlgorithmMismatch, cerr.Error(), issClaim, kid, alg)
		default:
			return nil, v.counter.NewWithContext(events.SignatureInvalid, cerr.Error(), issClaim, kid, alg)
		}
	}

	return &pipelineResult{
		issuerCfg: issuerCfg,
		decoded:   decoded,
		header:    header,
		payload:   payload,
		alg:       alg,
		kid:       kid,
		typ:       typ,
		rawToken:  raw,
	}, nil
}

// resolveKey implements §4.4's "at-most-one reload retry": if the snapshot
// misses on a kid-qualified lookup, trigger a reload and retry exactly once
// against the fresh snapshot.
func (v *TokenValidator) resolveKey(ctx context.Context, cfg *issuer.Config, kid, alg string) (*keyInfoRef, *events.ValidationError) {
	if verr := v.registry.EnsureLoaded(ctx, cfg); verr != nil {
		return nil, v.counter.New(events.KeyUnavailable, "jwks not available for issuer "+cfg.Identifier+": "+verr.Message)
	}

	snap := cfg.Provider().Snapshot()
	if snap == nil {
		return nil, v.counter.New(events.KeyUnavailable, "no jwks snapshot available for issuer "+cfg.Identifier)
	}

	info, verr := snap.Select(kid, alg, v.counter)
	if verr == nil {
		return &keyInfoRef{Key: info.Key}, nil
	}
	if verr.Event != events.NoKeyForKid || kid == "" {
		return nil, verr
	}

	// Exactly one retry against a freshly reloaded snapshot.
	fresh, rerr := cfg.Provider().Reload(ctx, v.counter)
	if rerr != nil {
		return nil, rerr
	}
	info, verr = fresh.Select(kid, alg, v.counter)
	if verr != nil {
		return nil, verr
	}
	return &keyInfoRef{Key: info.Key}, nil
}

type keyInfoRef struct {
	Key any
}

func stringClaim(m map[string]jsonlimits.Value, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v.Kind != jsonlimits.KindString {
		return "", false
	}
	return v.Str, true
}

func typCompatible(typ string) bool {
	t := strings.ToUpper(typ)
	return t == "JWT" || strings.HasSuffix(strings.ToLower(typ), "+jwt")
}

// stringListOrNil returns v's string list, or nil when the claim is absent.
func stringListOrNil(v claims.Value) []string {
	if v.IsAbsent() {
		return nil
	}
	return v.StrList
}
