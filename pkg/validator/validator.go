// Package validator implements the end-to-end token validation pipeline
// described in spec.md §4.9: it decodes, resolves the issuer, verifies the
// signature, and maps and validates claims for access, ID, and refresh
// tokens, producing a typed result or a categorized ValidationError.
package validator

import (
	"context"

	"github.com/tokenguard/jwtguard/pkg/claims"
	"github.com/tokenguard/jwtguard/pkg/codec"
	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
)

// TokenValidator is the single entry point for validating access, ID, and
// refresh tokens against a registry of known issuers.
type TokenValidator struct {
	registry *issuer.Registry
	counter  *events.Counter
	opts     Options
}

// NewTokenValidator builds a TokenValidator. opts is normally DefaultOptions
// with selected fields overridden.
func NewTokenValidator(registry *issuer.Registry, counter *events.Counter, opts Options) *TokenValidator {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &TokenValidator{registry: registry, counter: counter, opts: opts}
}

// ValidateAccess runs the full pipeline for an OAuth2 access token: iss,
// exp, iat are mandatory; sub is mandatory unless the issuer waives it via
// ClaimSubOptional; aud/azp are checked when the issuer configures them;
// scope/scp map to Scopes, and the issuer's Keycloak mappers (if enabled)
// populate Roles/Groups.
func (v *TokenValidator) ValidateAccess(ctx context.Context, raw string) (*AccessToken, *events.ValidationError) {
	res, verr := v.runCommon(ctx, raw)
	if verr != nil {
		return nil, verr
	}

	tc, verr := v.checkTemporal(res.payload, true)
	if verr != nil {
		return nil, verr
	}
	if !tc.hasIat {
		return nil, v.counter.NewWithContext(events.MissingClaim, "iat claim is required", res.issuerCfg.Identifier, res.kid, res.alg)
	}

	subVal, err := claims.Identity(res.payload, "sub")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), res.issuerCfg.Identifier, res.kid, res.alg)
	}
	if subVal.IsAbsent() && !res.issuerCfg.ClaimSubOptional {
		return nil, v.counter.NewWithContext(events.MissingClaim, "sub claim is required", res.issuerCfg.Identifier, res.kid, res.alg)
	}
	if subVal.IsAbsent() {
		v.counter.Increment(events.SubjectClaimWaived)
	}

	aud, verr := v.checkAudience(res.issuerCfg, res.payload)
	if verr != nil {
		return nil, verr
	}
	azp, verr := v.checkAuthorizedParty(res.issuerCfg, res.payload)
	if verr != nil {
		return nil, verr
	}

	scopes, verr := v.scopesFor(res.issuerCfg, res.payload)
	if verr != nil {
		return nil, verr
	}
	roles, groups, verr := v.keycloakClaimsFor(res.issuerCfg, res.payload)
	if verr != nil {
		return nil, verr
	}

	return &AccessToken{
		Issuer:          res.issuerCfg.Identifier,
		Subject:         subVal.Str,
		Expiration:      tc.exp.Time,
		IssuedAt:        tc.iat.Time,
		NotBefore:       tc.nbf.Time,
		RawToken:        raw,
		Scopes:          scopes,
		Roles:           roles,
		Groups:          groups,
		Audience:        aud,
		AuthorizedParty: azp,
	}, nil
}

// ValidateID runs the full pipeline for an OIDC ID token: iss, sub, aud,
// exp, iat are all mandatory regardless of issuer configuration, per
// OIDC Core §2.
func (v *TokenValidator) ValidateID(ctx context.Context, raw string) (*IdToken, *events.ValidationError) {
	res, verr := v.runCommon(ctx, raw)
	if verr != nil {
		return nil, verr
	}

	tc, verr := v.checkTemporal(res.payload, true)
	if verr != nil {
		return nil, verr
	}
	if !tc.hasIat {
		return nil, v.counter.NewWithContext(events.MissingClaim, "iat claim is required", res.issuerCfg.Identifier, res.kid, res.alg)
	}

	subVal, err := claims.Identity(res.payload, "sub")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), res.issuerCfg.Identifier, res.kid, res.alg)
	}
	if subVal.IsAbsent() {
		return nil, v.counter.NewWithContext(events.MissingClaim, "sub claim is required", res.issuerCfg.Identifier, res.kid, res.alg)
	}

	audClaim, err := claims.Collection(res.payload, "aud")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), res.issuerCfg.Identifier, res.kid, res.alg)
	}
	if audClaim.IsAbsent() {
		return nil, v.counter.NewWithContext(events.MissingClaim, "aud claim is required", res.issuerCfg.Identifier, res.kid, res.alg)
	}
	aud := stringListOrNil(audClaim)
	if len(res.issuerCfg.ExpectedAudiences) > 0 {
		if _, verr := v.checkAudience(res.issuerCfg, res.payload); verr != nil {
			return nil, verr
		}
	}
	azp, verr := v.checkAuthorizedParty(res.issuerCfg, res.payload)
	if verr != nil {
		return nil, verr
	}

	nonce, _ := stringClaim(res.payload, "nonce")

	return &IdToken{
		Issuer:          res.issuerCfg.Identifier,
		Subject:         subVal.Str,
		Expiration:      tc.exp.Time,
		IssuedAt:        tc.iat.Time,
		NotBefore:       tc.nbf.Time,
		RawToken:        raw,
		Audience:        aud,
		AuthorizedParty: azp,
		Nonce:           nonce,
	}, nil
}

// ValidateRefresh runs the pipeline for a refresh token. Refresh tokens may
// be opaque (not JWT-shaped at all) per spec.md's "opaque tokens are
// permitted" rule; an opaque token validates successfully with only
// RawToken populated. A JWT-shaped refresh token still requires iss and,
// when present, a well-formed exp/nbf/iat.
func (v *TokenValidator) ValidateRefresh(ctx context.Context, raw string) (*RefreshToken, *events.ValidationError) {
	if raw == "" {
		return nil, v.counter.New(events.TokenEmpty, "token is empty")
	}
	if verr := codec.CheckSize(raw, v.opts.MaxTokenSize, v.counter); verr != nil {
		return nil, verr
	}
	if !looksLikeJWT(raw) {
		return &RefreshToken{RawToken: raw, Opaque: true}, nil
	}

	res, verr := v.runCommon(ctx, raw)
	if verr != nil {
		return nil, verr
	}

	tc, verr := v.checkTemporal(res.payload, false)
	if verr != nil {
		return nil, verr
	}

	subVal, err := claims.Identity(res.payload, "sub")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), res.issuerCfg.Identifier, res.kid, res.alg)
	}

	return &RefreshToken{
		Issuer:     res.issuerCfg.Identifier,
		Subject:    subVal.Str,
		Expiration: tc.exp.Time,
		IssuedAt:   tc.iat.Time,
		NotBefore:  tc.nbf.Time,
		RawToken:   raw,
	}, nil
}

// looksLikeJWT reports whether raw has the three-dot-separated-segment
// shape a compact JWT requires. Anything else is treated as an opaque
// refresh token rather than a malformed one.
func looksLikeJWT(raw string) bool {
	dots := 0
	for _, r := range raw {
		if r == '.' {
			dots++
		}
	}
	return dots == 2
}

func (v *TokenValidator) scopesFor(cfg *issuer.Config, payload map[string]jsonlimits.Value) ([]string, *events.ValidationError) {
	scopeVal, err := claims.StringSplitter(payload, "scope", " ")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), cfg.Identifier, "", "")
	}
	if !scopeVal.IsAbsent() {
		return scopeVal.StrList, nil
	}
	scpVal, err := claims.Collection(payload, "scp")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), cfg.Identifier, "", "")
	}
	if scpVal.IsAbsent() {
		return nil, v.counter.NewWithContext(events.MissingClaim, "scope or scp claim is required", cfg.Identifier, "", "")
	}
	return stringListOrNil(scpVal), nil
}

func (v *TokenValidator) keycloakClaimsFor(cfg *issuer.Config, payload map[string]jsonlimits.Value) (roles, groups []string, verr *events.ValidationError) {
	if cfg.KeycloakRolesMapper {
		rolesVal, err := claims.KeycloakRoles(payload)
		if err != nil {
			return nil, nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), cfg.Identifier, "", "")
		}
		roles = stringListOrNil(rolesVal)
	}
	if cfg.KeycloakGroupsMapper {
		groupsVal, err := claims.KeycloakGroups(payload)
		if err != nil {
			return nil, nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), cfg.Identifier, "", "")
		}
		groups = stringListOrNil(groupsVal)
	}
	return roles, groups, nil
}
