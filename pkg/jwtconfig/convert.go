package jwtconfig

import (
	"net/http"

	"github.com/tokenguard/jwtguard/pkg/issuer"
	"github.com/tokenguard/jwtguard/pkg/jsonlimits"
	"github.com/tokenguard/jwtguard/pkg/jwksload"
	"github.com/tokenguard/jwtguard/pkg/validator"
)

// IssuerConfigs builds the issuer.Config slice the registry needs from the
// loaded configuration. httpClient defaults to http.DefaultClient when nil.
func (c *Config) IssuerConfigs(httpClient *http.Client) []*issuer.Config {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	out := make([]*issuer.Config, 0, len(c.Issuers))
	for _, iss := range c.Issuers {
		out = append(out, &issuer.Config{
			Identifier:            iss.Identifier,
			ExpectedAudiences:     iss.ExpectedAudiences,
			ExpectedClientID:      iss.ExpectedClientID,
			AllowedAlgorithms:     iss.AllowedAlgorithms,
			ClaimSubOptional:      iss.ClaimSubOptional,
			KeycloakRolesMapper:   iss.KeycloakRolesMapper,
			KeycloakGroupsMapper:  iss.KeycloakGroupsMapper,
			Source:                iss.source(),
			HTTPClient:            httpClient,
			Retry:                 iss.Retry.toRetryPolicy(),
		})
	}
	return out
}

func (iss IssuerConfig) source() issuer.Source {
	switch {
	case iss.JWKSStaticJSON != "":
		return issuer.Source{Kind: issuer.SourceStaticContent, StaticJSON: []byte(iss.JWKSStaticJSON)}
	case iss.JWKSFilePath != "":
		return issuer.Source{Kind: issuer.SourceFilePath, FilePath: iss.JWKSFilePath}
	case iss.JWKSURL != "":
		return issuer.Source{Kind: issuer.SourceDirectURL, URL: iss.JWKSURL}
	default:
		return issuer.Source{Kind: issuer.SourceWellKnownURL, WellKnownURL: iss.WellKnownURL}
	}
}

func (r RetryConfig) toRetryPolicy() jwksload.RetryPolicy {
	return jwksload.RetryPolicy{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		Multiplier:   r.Multiplier,
		MaxDelay:     r.MaxDelay,
		JitterFactor: r.JitterFactor,
	}
}

// ValidatorOptions builds validator.Options from the validation section of
// the configuration.
func (c *Config) ValidatorOptions() validator.Options {
	return validator.Options{
		MaxTokenSize: c.Validation.MaxTokenSize,
		JSONLimits: jsonlimits.Limits{
			MaxPayloadSize: c.Validation.MaxPayloadSize,
			MaxStringSize:  c.Validation.MaxStringSize,
			MaxArraySize:   c.Validation.MaxArraySize,
			MaxDepth:       c.Validation.MaxDepth,
		},
		GlobalAllowedAlgorithms: c.Validation.GlobalAllowedAlgorithms,
		Leeway:                  c.Validation.Leeway,
		Clock:                   validator.SystemClock{},
	}
}
