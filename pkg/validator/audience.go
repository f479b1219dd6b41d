package validator

import (
	"github.com/tokenguard/jwtguard/pkg/claims"
	"github.com/tokenguard/jwtguard/pkg/events"
	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
)

// checkAudience enforces spec.md §4.9's audience rule: if the issuer
// configures ExpectedAudiences, the token's aud (string or array) must
// contain at least one of them. An issuer with no configured audiences
// skips the check entirely.
func (v *TokenValidator) checkAudience(cfg *issuer.Config, payload map[string]jsonlimits.Value) ([]string, *events.ValidationError) {
	audClaim, err := claims.Collection(payload, "aud")
	if err != nil {
		return nil, v.counter.NewWithContext(events.InvalidClaimShape, err.Error(), cfg.Identifier, "", "")
	}
	aud := stringListOrNil(audClaim)

	if len(cfg.ExpectedAudiences) == 0 {
		return aud, nil
	}
	if audClaim.IsAbsent() {
		return nil, v.counter.NewWithContext(events.MissingClaim, "aud claim is required", cfg.Identifier, "", "")
	}
	for _, want := range cfg.ExpectedAudiences {
		for _, got := range aud {
			if want == got {
				return aud, nil
			}
		}
	}
	return nil, v.counter.NewWithContext(events.AudienceMismatch, "aud does not contain any expected audience", cfg.Identifier, "", "")
}

// checkAuthorizedParty enforces spec.md §4.9's azp rule: when the issuer
// configures an ExpectedClientID, azp must be present and equal to it.
// Issuers with no ExpectedClientID configured skip the check.
func (v *TokenValidator) checkAuthorizedParty(cfg *issuer.Config, payload map[string]jsonlimits.Value) (string, *events.ValidationError) {
	azpVal, ok := stringClaim(payload, "azp")

	if cfg.ExpectedClientID == "" {
		return azpVal, nil
	}
	if !ok {
		return "", v.counter.NewWithContext(events.MissingClaim, "azp claim is required", cfg.Identifier, "", "")
	}
	if azpVal != cfg.ExpectedClientID {
		return "", v.counter.NewWithContext(events.AzpMismatch, "azp does not match expected client id", cfg.Identifier, "", "")
	}
	return azpVal, nil
}
