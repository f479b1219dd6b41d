// Package jwtbearer adapts a validator.TokenValidator to the auth package's
// three-outcome Authenticator interface, extracting a bearer token from the
// Authorization header and mapping its AccessToken claims onto an
// auth.Identity.
package jwtbearer

import (
	"context"
	"net/http"
	"strings"

	"github.com/tokenguard/jwtguard/pkg/auth"
	"github.com/tokenguard/jwtguard/pkg/validator"
)

// Config controls how an AccessToken maps onto an auth.Identity.
type Config struct {
	// ServiceTier is the fixed tier assigned to every identity this
	// authenticator produces. Empty leaves ServiceTier unset.
	ServiceTier string

	// TenantClaim, if non-empty, copies that access-token claim into the
	// identity's "tenant_id" metadata key. Only "sub" is supported; any
	// other value is ignored.
	TenantClaim string
}

// Authenticator validates bearer tokens with a validator.TokenValidator and
// reports the three-outcome vote auth.AuthChain expects.
type Authenticator struct {
	tv  *validator.TokenValidator
	cfg Config
}

// New builds a jwtbearer.Authenticator over an already-constructed
// TokenValidator.
func New(tv *validator.TokenValidator, cfg Config) *Authenticator {
	return &Authenticator{tv: tv, cfg: cfg}
}

// Authenticate extracts a bearer token from the Authorization header and
// validates it as an access token.
//
// Decision outcomes:
//   - Abstain: no Authorization header, or not a Bearer scheme
//   - No: bearer token present but failed validation for any reason
//   - Yes: valid access token with a populated Identity
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimPrefix(header, "Bearer ")
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	access, verr := a.tv.ValidateAccess(ctx, tokenStr)
	if verr != nil {
		return auth.AuthResult{Decision: auth.No, Err: verr}
	}

	identity := &auth.Identity{
		Subject:     access.Subject,
		ServiceTier: a.cfg.ServiceTier,
		Scopes:      access.Scopes,
	}
	if a.cfg.TenantClaim == "sub" {
		identity.Metadata = map[string]string{"tenant_id": access.Subject}
	}

	return auth.AuthResult{Decision: auth.Yes, Identity: identity}
}
