package jwtconfig

import (
	"errors"
	"fmt"

	"github.com/tokenguard/jwtguard/pkg/jwtcrypto"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Issuers) == 0 {
		errs = append(errs, fmt.Errorf("at least one issuer is required"))
	}

	seen := make(map[string]bool, len(c.Issuers))
	for i, iss := range c.Issuers {
		path := fmt.Sprintf("issuers[%d]", i)

		if iss.Identifier == "" {
			errs = append(errs, fmt.Errorf("%s.identifier is required", path))
		} else if seen[iss.Identifier] {
			errs = append(errs, fmt.Errorf("%s.identifier %q is configured more than once", path, iss.Identifier))
		}
		seen[iss.Identifier] = true

		sources := 0
		if iss.JWKSStaticJSON != "" {
			sources++
		}
		if iss.JWKSFilePath != "" {
			sources++
		}
		if iss.JWKSURL != "" {
			sources++
		}
		if iss.WellKnownURL != "" {
			sources++
		}
		if sources != 1 {
			errs = append(errs, fmt.Errorf("%s must configure exactly one of jwks_static_json, jwks_file_path, jwks_url, well_known_url (got %d)", path, sources))
		}

		for _, alg := range iss.AllowedAlgorithms {
			if _, ok := jwtcrypto.KeyTypeFor(alg); !ok {
				errs = append(errs, fmt.Errorf("%s.allowed_algorithms: %q is not a supported asymmetric algorithm", path, alg))
			}
		}

		if iss.Retry.MaxAttempts < 0 {
			errs = append(errs, fmt.Errorf("%s.retry.max_attempts must be >= 0", path))
		}
	}

	if c.Validation.MaxTokenSize <= 0 {
		errs = append(errs, fmt.Errorf("validation.max_token_size must be > 0, got %d", c.Validation.MaxTokenSize))
	}
	if c.Validation.MaxPayloadSize <= 0 {
		errs = append(errs, fmt.Errorf("validation.max_payload_size must be > 0, got %d", c.Validation.MaxPayloadSize))
	}
	if c.Validation.MaxDepth <= 0 {
		errs = append(errs, fmt.Errorf("validation.max_depth must be > 0, got %d", c.Validation.MaxDepth))
	}
	if c.Validation.Leeway < 0 {
		errs = append(errs, fmt.Errorf("validation.leeway must be >= 0, got %s", c.Validation.Leeway))
	}
	for _, alg := range c.Validation.GlobalAllowedAlgorithms {
		if _, ok := jwtcrypto.KeyTypeFor(alg); !ok {
			errs = append(errs, fmt.Errorf("validation.global_allowed_algorithms: %q is not a supported asymmetric algorithm", alg))
		}
	}

	return errors.Join(errs...)
}
