package validator

import (
	"github.com/tokenguard/jwtguard/pkg/claims"
	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
)

// temporalClaims holds the three NumericDate claims, each possibly absent.
type temporalClaims struct {
	exp    claims.Value
	iat    claims.Value
	nbf    claims.Value
	hasExp bool
	hasIat bool
	hasNbf bool
}

func mapTemporal(payload map[string]jsonlimits.Value) (temporalClaims, string) {
	var tc temporalClaims
	var err error

	tc.exp, err = claims.DateTime(payload, "exp")
	if err != nil {
		return tc, err.Error()
	}
	tc.hasExp = !tc.exp.IsAbsent()

	tc.iat, err = claims.DateTime(payload, "iat")
	if err != nil {
		return tc, err.Error()
	}
	tc.hasIat = !tc.iat.IsAbsent()

	tc.nbf, err = claims.DateTime(payload, "nbf")
	if err != nil {
		return tc, err.Error()
	}
	tc.hasNbf = !tc.nbf.IsAbsent()

	return tc, ""
}

// checkTemporal applies spec.md §4.9's leeway rules. exp is mandatory when
// mandatoryExp is true. nbf and iat are validated only when present.
func (v *TokenValidator) checkTemporal(payload map[string]jsonlimits.Value, mandatoryExp bool) (temporalClaims, *events.ValidationError) {
	tc, shapeErr := mapTemporal(payload)
	if shapeErr != "" {
		return tc, v.counter.New(events.InvalidClaimShape, shapeErr)
	}

	if mandatoryExp && !tc.hasExp {
		return tc, v.counter.New(events.MissingClaim, "exp claim is required")
	}

	now := v.opts.Clock.Now()
	leeway := v.opts.Leeway

	if tc.hasExp {
		// exp must be >= now - leeway; exact equality is accepted.
		if tc.exp.Time.Before(now.Add(-leeway)) {
			return tc, v.counter.New(events.TokenExpired, "token has expired")
		}
	}
	if tc.hasNbf {
		// nbf must be <= now + leeway.
		if tc.nbf.Time.After(now.Add(leeway)) {
			return tc, v.counter.New(events.TokenNotYetValid, "token is not yet valid")
		}
	}
	// iat has no independent rejection rule beyond being well-formed; it is
	// surfaced to callers via temporalClaims for informational purposes.

	return tc, nil
}
